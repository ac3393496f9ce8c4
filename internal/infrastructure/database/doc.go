// Package database provides SQLite connectivity for DEWHOME Core.
//
// It opens the database with WAL mode, a busy timeout and foreign keys
// enabled, limits the pool to a single connection, and applies the
// embedded schema migrations tracked in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and live in the top-level migrations directory.
package database
