package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/example/autoecole-scheduler/internal/persistence"
	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore/migration"
)

// ConnectionPool owns the database handle and knows which SQL dialect it speaks.
type ConnectionPool struct {
	db      *sql.DB
	dialect migration.Dialect
}

// NewConnectionPool opens and pings a database described by config.
func NewConnectionPool(ctx context.Context, config migration.DatabaseConfig) (*ConnectionPool, error) {
	db, err := migration.NewConnectionManager(config).GetConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	dialect := config.Dialect
	if dialect == "" {
		dialect = migration.DialectSQLite
	}
	return &ConnectionPool{db: db, dialect: dialect}, nil
}

// DB returns the underlying database connection
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Dialect returns the SQL dialect of the pool.
func (cp *ConnectionPool) Dialect() migration.Dialect {
	return cp.dialect
}

// Close closes the connection pool
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// TransactionFunc represents a function that executes within a transaction
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction executes fn within a transaction. The transaction is rolled back when fn
// returns an error or panics, and committed otherwise.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// QueryHelper rebinds placeholders for the pool dialect before running queries.
type QueryHelper struct {
	pool *ConnectionPool
}

// NewQueryHelper creates a new query helper
func NewQueryHelper(pool *ConnectionPool) *QueryHelper {
	return &QueryHelper{pool: pool}
}

// QueryRow executes a query that returns a single row
func (qh *QueryHelper) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return qh.pool.db.QueryRowContext(ctx, qh.pool.dialect.Rebind(query), args...)
}

// Query executes a query that returns multiple rows
func (qh *QueryHelper) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return qh.pool.db.QueryContext(ctx, qh.pool.dialect.Rebind(query), args...)
}

// Exec executes a query that doesn't return rows
func (qh *QueryHelper) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return qh.pool.db.ExecContext(ctx, qh.pool.dialect.Rebind(query), args...)
}

// QueryRowTx executes a query that returns a single row within a transaction
func (qh *QueryHelper) QueryRowTx(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	return tx.QueryRowContext(ctx, qh.pool.dialect.Rebind(query), args...)
}

// QueryTx executes a query that returns multiple rows within a transaction
func (qh *QueryHelper) QueryTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (*sql.Rows, error) {
	return tx.QueryContext(ctx, qh.pool.dialect.Rebind(query), args...)
}

// ExecTx executes a query that doesn't return rows within a transaction
func (qh *QueryHelper) ExecTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return tx.ExecContext(ctx, qh.pool.dialect.Rebind(query), args...)
}

// ErrorMapper maps driver errors onto the persistence sentinels.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError wraps err with the matching persistence sentinel, keeping the driver error in the message.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	for _, sentinel := range []error{
		persistence.ErrNotFound,
		persistence.ErrDuplicate,
		persistence.ErrConstraintViolation,
		persistence.ErrForeignKeyViolation,
		persistence.ErrUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return wrap(persistence.ErrDuplicate, err)
		case "23503":
			return wrap(persistence.ErrForeignKeyViolation, err)
		case "23514", "23502":
			return wrap(persistence.ErrConstraintViolation, err)
		}
		switch pqErr.Code.Class() {
		case "08", "53", "57", "40":
			return wrap(persistence.ErrUnavailable, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return wrap(persistence.ErrUnavailable, err)
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "PRIMARY KEY constraint failed"):
		return wrap(persistence.ErrDuplicate, err)
	case containsAny(msg, "FOREIGN KEY constraint failed"):
		return wrap(persistence.ErrForeignKeyViolation, err)
	case containsAny(msg, "CHECK constraint failed", "NOT NULL constraint failed"):
		return wrap(persistence.ErrConstraintViolation, err)
	case containsAny(msg, "database is locked", "database table is locked", "SQLITE_BUSY", "connection refused"):
		return wrap(persistence.ErrUnavailable, err)
	}
	return err
}

func wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
