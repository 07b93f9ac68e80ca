// Package reconcile holds the pieces shared by the course, enrolment and user sync engines.
//
// # Change Detection
//
// Diff compares a target course with its source counterpart over a list of update fields.
// Values are normalized before comparison (HTML entities decoded, booleans as 1/0), fields
// missing on either side are skipped, and the end date is ignored while the target computes
// it automatically.
//
//	changes := reconcile.Diff(targetCourse, sourceCourse, target.FieldSet().Update)
//	if changes.Needed() {
//	    log.Info("Updating course", zap.Strings("changes", changes.Strings()))
//	}
//
// # Reference Resolution
//
// Resolver maps category names, course shortnames, usernames and role names to target ids.
// Categories are created on demand (parent first). All lookups go through a Cache that lives
// for one engine run and remembers misses as well as hits.
//
// # Reports
//
// Every engine run produces a Report with a run id, per-kind counters and the list of
// record-level failures. Record failures never abort a run; they are logged, counted and
// kept in Report.Failures.
package reconcile
