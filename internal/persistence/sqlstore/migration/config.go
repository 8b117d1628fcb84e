package migration

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Dialect identifies the SQL backend in use.
type Dialect string

const (
	// DialectSQLite targets modernc.org/sqlite.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres targets github.com/lib/pq.
	DialectPostgres Dialect = "postgres"
)

// ParseDialect accepts the driver names used in configuration.
func ParseDialect(value string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, value)
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Rebind rewrites '?' placeholders into the dialect's native form.
// Queries in this module never contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DatabaseConfig holds connection settings for either dialect.
type DatabaseConfig struct {
	Dialect Dialect

	// DSN is a file path for SQLite or a connection string for PostgreSQL
	DSN string

	// BusyTimeout sets how long SQLite waits for database locks
	BusyTimeout time.Duration

	// EnableForeignKeys enables SQLite foreign key enforcement (always on in PostgreSQL)
	EnableForeignKeys bool

	// JournalMode sets the SQLite journal mode (WAL, DELETE, MEMORY, ...)
	JournalMode string

	// Synchronous sets the SQLite synchronous mode (FULL, NORMAL, OFF)
	Synchronous string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConnectionManager opens configured database handles.
type ConnectionManager interface {
	// GetConnection returns a configured and pinged database handle
	GetConnection(ctx context.Context) (*sql.DB, error)

	// ValidateConfig validates the configuration
	ValidateConfig() error
}

type connectionManager struct {
	config DatabaseConfig
}

// NewConnectionManager creates a connection manager for the configuration.
func NewConnectionManager(config DatabaseConfig) ConnectionManager {
	if config.Dialect == "" {
		config.Dialect = DialectSQLite
	}
	return &connectionManager{config: config}
}

// GetConnection returns a configured database connection
func (cm *connectionManager) GetConnection(ctx context.Context) (*sql.DB, error) {
	if err := cm.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dsn := cm.config.DSN
	if cm.config.Dialect == DialectSQLite {
		if err := cm.createDatabaseDir(); err != nil {
			return nil, err
		}
		dsn = cm.sqliteDSN()
	}

	db, err := sql.Open(cm.config.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cm.config.Dialect, err)
	}

	if cm.config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cm.config.MaxOpenConns)
	}
	if cm.config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cm.config.MaxIdleConns)
	}
	if cm.config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cm.config.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cm.config.Dialect, err)
	}

	return db, nil
}

// sqliteDSN encodes the pragmas into the DSN so every pooled connection gets them,
// and asks for immediate write transactions so concurrent writers queue on busy_timeout.
func (cm *connectionManager) sqliteDSN() string {
	params := url.Values{}
	if cm.config.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cm.config.BusyTimeout.Milliseconds()))
	}
	if cm.config.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	if cm.config.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", cm.config.JournalMode))
	}
	if cm.config.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", cm.config.Synchronous))
	}
	params.Set("_txlock", "immediate")

	base := cm.config.DSN
	if base != ":memory:" && !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}

func (cm *connectionManager) createDatabaseDir() error {
	path := strings.TrimPrefix(cm.config.DSN, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

// ValidateConfig validates the configuration
func (cm *connectionManager) ValidateConfig() error {
	if cm.config.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if cm.config.Dialect != DialectSQLite && cm.config.Dialect != DialectPostgres {
		return fmt.Errorf("%w: %q", ErrUnknownDialect, cm.config.Dialect)
	}
	if cm.config.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout cannot be negative")
	}

	validJournalModes := map[string]bool{
		"DELETE":   true,
		"TRUNCATE": true,
		"PERSIST":  true,
		"MEMORY":   true,
		"WAL":      true,
		"OFF":      true,
	}
	if cm.config.JournalMode != "" && !validJournalModes[cm.config.JournalMode] {
		return fmt.Errorf("invalid journal mode: %s", cm.config.JournalMode)
	}

	validSyncModes := map[string]bool{
		"OFF":    true,
		"NORMAL": true,
		"FULL":   true,
		"EXTRA":  true,
	}
	if cm.config.Synchronous != "" && !validSyncModes[cm.config.Synchronous] {
		return fmt.Errorf("invalid synchronous mode: %s", cm.config.Synchronous)
	}

	if cm.config.MaxOpenConns < 0 {
		return fmt.Errorf("MaxOpenConns cannot be negative")
	}
	if cm.config.MaxIdleConns < 0 {
		return fmt.Errorf("MaxIdleConns cannot be negative")
	}
	if cm.config.ConnMaxLifetime < 0 {
		return fmt.Errorf("ConnMaxLifetime cannot be negative")
	}
	return nil
}

// DefaultSQLiteConfig returns a SQLite configuration for a server process.
func DefaultSQLiteConfig(databasePath string) DatabaseConfig {
	return DatabaseConfig{
		Dialect:           DialectSQLite,
		DSN:               databasePath,
		BusyTimeout:       10 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      4,
		MaxIdleConns:      4,
		ConnMaxLifetime:   30 * time.Minute,
	}
}

// DefaultPostgresConfig returns a PostgreSQL configuration for a server process.
func DefaultPostgresConfig(dsn string) DatabaseConfig {
	return DatabaseConfig{
		Dialect:         DialectPostgres,
		DSN:             dsn,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// TempFileTestSQLiteConfig returns a SQLite configuration for temporary file-based testing.
// A single connection keeps the tests deterministic.
func TempFileTestSQLiteConfig(tempFilePath string) DatabaseConfig {
	return DatabaseConfig{
		Dialect:           DialectSQLite,
		DSN:               tempFilePath,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		MaxOpenConns:      1,
		MaxIdleConns:      1,
	}
}
