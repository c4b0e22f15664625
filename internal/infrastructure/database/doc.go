// Package database opens the bridge's SQLite file and applies schema migrations.
//
// The only table the bridge owns is state_history (see package device);
// nothing in the live path reads from it.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: each version has an .up.sql and, for
// development rollbacks, a .down.sql.
package database
