package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"time"
)

type migrationManager struct {
	scanner        FileScanner
	executor       Executor
	fsys           fs.FS
	dir            string
	logger         *slog.Logger
	verifyChecksum bool
}

// ManagerOption customizes a MigrationManager.
type ManagerOption func(*migrationManager)

// WithChecksumVerification makes the manager refuse to run when an applied file changed.
func WithChecksumVerification() ManagerOption {
	return func(m *migrationManager) {
		m.verifyChecksum = true
	}
}

// NewMigrationManager creates a MigrationManager reading migrations from dir inside fsys.
func NewMigrationManager(scanner FileScanner, executor Executor, fsys fs.FS, dir string, logger *slog.Logger, opts ...ManagerOption) MigrationManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &migrationManager{
		scanner:  scanner,
		executor: executor,
		fsys:     fsys,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunMigrations executes all pending migrations in sequential order
func (m *migrationManager) RunMigrations(ctx context.Context) error {
	started := time.Now()

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to resolve pending migrations", "error", err)
		return err
	}
	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "pending", len(pending))
	for i, migration := range pending {
		logger := m.logger.With(
			"version", migration.Version,
			"description", migration.Description,
			"checksum", migration.Checksum,
		)
		migrationStart := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		logger.InfoContext(ctx, "migration applied",
			"position", i+1,
			"total", len(pending),
			"duration", time.Since(migrationStart),
		)
	}

	m.logger.InfoContext(ctx, "all migrations applied", "count", len(pending), "duration", time.Since(started))
	return nil
}

// GetPendingMigrations returns list of migrations that need to be applied
func (m *migrationManager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	return status.PendingMigrations, nil
}

// GetMigrationStatus returns status information about migrations
func (m *migrationManager) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := m.validateSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	currentVersion := ""
	maxVersion := -1
	for _, a := range applied {
		n := versionNumber(a.Version)
		appliedByVersion[n] = a
		if n > maxVersion {
			maxVersion = n
			currentVersion = a.Version
		}
	}

	var pending []Migration
	for _, migration := range available {
		a, ok := appliedByVersion[versionNumber(migration.Version)]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if m.verifyChecksum && a.Checksum != "" && a.Checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: applied %s, file %s", ErrChecksumMismatch, a.Checksum, migration.Checksum))
		}
	}

	return &MigrationStatus{
		CurrentVersion:    currentVersion,
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}, nil
}

// validateSequence rejects gaps in the available versions and applied versions without a file.
func (m *migrationManager) validateSequence(available []Migration, applied []AppliedMigration) error {
	availableSet := make(map[int]bool, len(available))
	for _, migration := range available {
		availableSet[versionNumber(migration.Version)] = true
	}

	if len(available) > 0 {
		first := versionNumber(available[0].Version)
		last := versionNumber(available[len(available)-1].Version)
		for v := first; v <= last; v++ {
			if !availableSet[v] {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, v)
			}
		}
	}

	for _, a := range applied {
		n, err := strconv.Atoi(a.Version)
		if err != nil {
			return NewDatabaseError(a.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version '%s' is not numeric", ErrVersionTableCorrupt, a.Version))
		}
		if !availableSet[n] {
			return fmt.Errorf("%w: applied migration %03d not found in available migrations", ErrVersionConflict, n)
		}
	}
	return nil
}
