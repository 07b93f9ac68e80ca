// Package provider defines the capability contracts between the sync engines and their backends.
//
// Each entity kind has a source interface (authoritative, read only) and a target interface
// (read and mutate). Backends live in feature packages (moodleapi, moodledb, erp) and in the
// in-memory provider under provider/memory.
//
// # Errors
//
// Backends wrap failures with the sentinels in this package so engines can branch on them:
//
//	id, err := target.CourseID(ctx, "HIS-101")
//	if provider.IsNotFound(err) {
//	    // skip this course
//	}
//
// # Dry Run
//
// Targets take a dry-run flag at construction. Reads still execute. Mutations return the
// DryRun* sentinel ids or an Outcome with DryRun set, and write nothing.
package provider
