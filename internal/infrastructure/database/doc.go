// Package database provides SQLite connectivity for the discovery adapter.
//
// The adapter's only persistent state is the host device registry, stored
// in one SQLite file opened with WAL mode and a busy timeout. Schema changes
// ship as embedded migration files applied in version order by Migrate.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
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
// matching .down.sql. New columns must be nullable or carry a default.
package database
