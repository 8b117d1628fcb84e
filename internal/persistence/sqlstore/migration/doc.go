// Package migration applies versioned schema changes to the scheduling database.
//
// Migration files are read from an fs.FS (normally the embedded migrations directory of
// the sqlstore package) and must be named {version}_{description}.sql, for example
// "001_core_schema.sql". Applied versions are tracked in a schema_migrations table
// together with the checksum of the file that was run.
//
// The same files are executed against SQLite and PostgreSQL, so they stick to the
// common SQL subset; the Dialect only changes placeholders and driver setup.
//
// Example usage:
//
//	scanner := NewFileScanner()
//	executor := NewExecutor(db, DialectSQLite)
//	manager := NewMigrationManager(scanner, executor, migrationsFS, ".", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
