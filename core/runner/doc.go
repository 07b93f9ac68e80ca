// Package runner drives sync runs for the CLI and the HTTP server.
//
// A Runner builds the source and target of a kind through Providers, runs the matching
// engine and hands the report to every Publisher (metrics, report archive). Runs are
// serialised with a mutex so no two passes ever mutate Moodle at the same time, and
// identical requests that arrive while a run is in flight join it through singleflight
// instead of queueing a second pass.
//
// Run returns ErrRecordFailures alongside the report when records failed, so callers can
// exit non-zero without treating the run as aborted.
//
// # Usage
//
//	r := runner.New(cfg.Sync, providers, logger, m, archive)
//	report, err := r.Run(ctx, r.Request(reconcile.KindCourses))
//	if errors.Is(err, runner.ErrRecordFailures) {
//		// the run completed; inspect report.Failures
//	}
package runner
