package sqlstore

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore/migration"
)

// Migrations holds the schema files shipped with the binary.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations containing the SQL files.
const MigrationsDir = "migrations"

// Migrate brings the schema of the pool's database up to date.
func Migrate(ctx context.Context, pool *ConnectionPool, logger *slog.Logger) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(),
		migration.NewExecutor(pool.DB(), pool.Dialect()),
		Migrations,
		MigrationsDir,
		logger,
		migration.WithChecksumVerification(),
	)
	return manager.RunMigrations(ctx)
}
