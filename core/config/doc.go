// Package config provides configuration management for moodle-sync.
//
// It utilizes Viper for loading configuration from environment variables and an
// optional .env file. Defaults come from the `default` struct tags of every section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Log: Logging level and format
//   - Sync: Dry run, course key, fetch mode, role policy and the backend of each kind
//   - Source: ERP database connection, view names, role map and cancelled statuses
//   - Moodle: Web service URL, token, throttling and course templates
//   - Database: Direct Moodle database connection and table prefix
//   - Storage: S3/MinIO report archive
//   - Server: HTTP port and API key
//   - Metrics: Prometheus namespace and textfile export
//   - Roles: Extra role definitions
//
// Environment variables map onto nested keys with dots replaced by underscores, so
// SOURCE_DB_HOST sets source.db.host and SYNC_ADD_ROLES=student,teacher sets sync.add_roles.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Moodle.URL)
package config
