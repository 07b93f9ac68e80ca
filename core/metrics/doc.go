// Package metrics exposes Prometheus collectors for sync runs.
//
// Every finished run increments moodle_sync_runs_total{kind,status} and
// moodle_sync_records_total{kind,outcome}, observes the run duration and updates the
// last-success and last-errors gauges. Runs that abort are counted with status "failed".
//
// The collectors live on a private registry. The HTTP server serves them on /metrics; cron
// driven runs can write them to a node-exporter textfile instead.
//
// # Usage
//
//	m := metrics.New(cfg.Metrics)
//	r := runner.New(cfg.Sync, providers, logger, m)
//	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
package metrics
