package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLExecutor implements Executor over database/sql for either dialect.
type SQLExecutor struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewExecutor creates a migration executor.
func NewExecutor(db *sql.DB, dialect Dialect) *SQLExecutor {
	return &SQLExecutor{db: db, dialect: dialect, now: time.Now}
}

// ExecuteMigration runs every statement of the migration and records it in schema_migrations
// within one transaction, so a failed migration leaves neither schema changes nor a version row.
func (e *SQLExecutor) ExecuteMigration(ctx context.Context, migration Migration) (err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return NewMigrationError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements found in migration", ErrInvalidMigrationFile))
	}

	started := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(migration.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback error: %v)", err, rbErr)
			}
		}
	}()

	for i, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = NewDatabaseError(migration.Version, stmt, fmt.Sprintf("execute statement %d", i+1), execErr)
			return err
		}
	}

	insertSQL := e.dialect.Rebind(`
		INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms)
		VALUES (?, ?, ?, ?)
	`)
	elapsed := e.now().Sub(started)
	if _, execErr := tx.ExecContext(ctx, insertSQL,
		migration.Version,
		e.now().UTC().Format(time.RFC3339),
		migration.Checksum,
		elapsed.Milliseconds(),
	); execErr != nil {
		err = NewDatabaseError(migration.Version, insertSQL, "record migration", execErr)
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = NewDatabaseError(migration.Version, "", "commit transaction", commitErr)
		return err
	}
	return nil
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist
func (e *SQLExecutor) InitializeVersionTable(ctx context.Context) error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms BIGINT NOT NULL DEFAULT 0
		)
	`
	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return NewDatabaseError("", createTableSQL, "create schema_migrations table", err)
	}
	return nil
}

// GetAppliedVersions returns all applied migration versions ordered by version
func (e *SQLExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	querySQL := `
		SELECT version, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY version ASC
	`
	rows, err := e.db.QueryContext(ctx, querySQL)
	if err != nil {
		return nil, NewDatabaseError("", querySQL, "get applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var version, appliedAtStr, sum string
		var executionTimeMs int64
		if err := rows.Scan(&version, &appliedAtStr, &executionTimeMs, &sum); err != nil {
			return nil, NewDatabaseError("", querySQL, "scan applied migration", err)
		}
		appliedAt, err := time.Parse(time.RFC3339, appliedAtStr)
		if err != nil {
			return nil, NewDatabaseError(version, querySQL, "parse applied_at",
				fmt.Errorf("%w: %v", ErrVersionTableCorrupt, err))
		}
		applied = append(applied, AppliedMigration{
			Version:       version,
			AppliedAt:     appliedAt,
			ExecutionTime: time.Duration(executionTimeMs) * time.Millisecond,
			Checksum:      sum,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", querySQL, "iterate applied migrations", err)
	}
	return applied, nil
}

// splitStatements removes comments and splits on ';'.
func splitStatements(sql string) []string {
	var statements []string
	for _, stmt := range strings.Split(stripComments(sql), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
