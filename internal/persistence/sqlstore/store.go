// Package sqlstore implements the persistence repositories on database/sql for SQLite
// (modernc.org/sqlite) and PostgreSQL (github.com/lib/pq).
package sqlstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore/migration"
)

// Store bundles the connection pool with every repository built on it.
type Store struct {
	Pool      *ConnectionPool
	Sessions  *SessionRepository
	Presence  *PresenceRepository
	Exams     *ExamRepository
	Directory *DirectoryRepository
}

// Open connects to the database, applies pending migrations and builds the repositories.
func Open(ctx context.Context, config migration.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return New(pool), nil
}

// New builds the repositories over an already migrated pool.
func New(pool *ConnectionPool) *Store {
	return &Store{
		Pool:      pool,
		Sessions:  NewSessionRepository(pool),
		Presence:  NewPresenceRepository(pool),
		Exams:     NewExamRepository(pool),
		Directory: NewDirectoryRepository(pool),
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.Pool == nil {
		return nil
	}
	return s.Pool.Close()
}
