// Package enrolment reconciles course rosters from an authoritative source into a target.
//
// Courses are processed one at a time and never created here; a course missing on the target
// is reported and skipped.
//
// # Cancelled Courses
//
// When the source marks a course cancelled every target participant is removed with a single
// delete per user, whatever the source roster says.
//
// # Additive Pass
//
// Each source entry whose role is in Options.AddRoles is resolved to a user id and role id and
// enrolled when the user does not hold that role yet. Entries that cannot be resolved are
// reported as lookup failures. An enrolment is counted as added when it is the user's first
// role in the course and as updated otherwise.
//
// # Subtractive Pass
//
// Target participants missing from the source roster lose the roles listed in
// Options.RemoveRoles. Roles outside that set are protected: a user holding one keeps it and
// is never deleted. Otherwise the participation is deleted outright when
// Options.DeleteUnenroled is set or the course has not started yet, and only the role is
// removed once the course is running.
//
// # Usage
//
//	engine := enrolment.NewEngine(source, target, enrolment.Options{}, logger)
//	report, err := engine.Sync(ctx)
package enrolment
