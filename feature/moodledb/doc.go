// Package moodledb implements the course, enrolment and user targets directly on the Moodle
// database through GORM. It is meant for sites where the web service is unavailable or too
// slow for bulk enrolment work.
//
// All table names carry the configured prefix (mdl_ by default). Queries stay within SQL that
// MySQL and SQLite both accept, so the store is tested against in-memory SQLite.
//
// # Courses
//
// Courses are created blank, together with their course context and a manual enrolment
// instance so that enrolments can be added straight away. Course format options
// (numsections, hiddensections, coursedisplay, automaticenddate) are read from and written to
// course_format_options.
//
// # Enrolments
//
// A participation is a user_enrolments row on the manual instance; a role is a
// role_assignments row in the course context. DeleteUser removes both in one transaction.
//
// # Users
//
// Created users get a bcrypt password hash. Deleted accounts are invisible to lookups.
//
// # Dry Run
//
// In dry-run mode lookups and counts still run, so outcomes report what would change, but
// nothing is written and creations return the dry-run sentinel ids.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	store := moodledb.NewStore(db, moodledb.Options{Prefix: cfg.Database.Prefix}, logger)
//	if err := store.Preflight(ctx); err != nil {
//		return err
//	}
package moodledb
