// Package database provides the agent's SQLite store.
//
// The agent keeps one small database: the history of accepted settings
// generations. This package owns the connection and schema migrations;
// the tables themselves are used by internal/history.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is restricted to 0600 because stored settings
//     may carry broker credentials
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.History)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: files are named
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching .down.sql.
package database
