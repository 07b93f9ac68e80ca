package metrics

// Config holds configuration for sync metrics.
type Config struct {
	// Enabled exposes /metrics on the HTTP server.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace" default:"moodle_sync"`
	// TextfilePath, when set, receives the metrics after every run in the node-exporter
	// textfile format. Use it for cron-driven runs that no scraper can reach.
	TextfilePath string `mapstructure:"textfile_path" default:""`
}
