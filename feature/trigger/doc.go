// Package trigger exposes sync runs over HTTP.
//
// # Routes
//
//   - POST /sync/:kind runs users, courses, enrolments or all. The optional dry_run and
//     fetch query parameters override the configured defaults. The JSON body carries the
//     run reports. The status is 207 when records failed and 500 when a run aborted.
//   - GET /reports lists archived reports, newest first, optionally filtered by ?kind=.
//   - GET /reports/<key> returns one archived report.
//
// The report routes are only loaded when the report archive is enabled.
//
// # Usage
//
//	h := trigger.NewHandler(r, archive, logger)
//	mgr.Register(trigger.NewFeature(h))
//	mgr.Register(trigger.NewReportFeature(h))
package trigger
