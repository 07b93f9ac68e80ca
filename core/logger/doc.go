// Package logger builds the zap logger shared by the CLI, the sync engines and the HTTP server.
//
// Level "debug" selects zap's development preset; any other level uses the production preset
// with that level applied. Format "console" gives coloured human-readable lines for operators
// running a sync by hand, "json" suits log shipping when running under a scheduler.
//
// Engines log one line per record action with the fields kind, key and action, so a failed
// enrolment can be found by grepping for the course shortname.
//
// # Request Correlation
//
// WithRayID attaches the ray id set by the rayid middleware. Every line logged while handling
// a sync trigger then carries the same ray_id as the response header.
//
// # Usage
//
//	log, err := logger.New(&cfg.Log)
//	if err != nil {
//	    return err
//	}
//	defer log.Sync()
//
//	l := logger.WithRayID(log, c)
//	l.Warn("Sync finished with record errors", zap.String("kind", kind))
package logger
