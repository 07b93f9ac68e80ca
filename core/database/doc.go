// Package database opens the databases moodle-sync talks to and inspects their schema.
//
// # Moodle Database
//
// Connect opens the Moodle database through GORM. MySQL is used in production and SQLite
// (usually ":memory:") in tests. Config.Table applies the Moodle table prefix.
//
// # ERP Source
//
// OpenSource opens the ERP database through sqlx. SQL Server, PostgreSQL and MySQL are
// supported; SourceDSN assembles the connection string unless an explicit DSN is configured.
//
// # Schema Inspection
//
// GetTableColumns lists the columns of a table and RequireSchema checks that the tables and
// columns a backend relies on are present before any sync starts.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", zap.Error(err))
//	}
//
//	err = database.RequireSchema(db, map[string][]string{
//	    cfg.Database.Table("course"): {"id", "shortname"},
//	})
package database
