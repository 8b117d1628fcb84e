package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore"
	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore/migration"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

// SQLiteHarness provides repository access backed by a temporary, migrated SQLite database
// for integration-style tests.
type SQLiteHarness struct {
	Store *sqlstore.Store

	tb      testing.TB
	cleanup func()
}

// NewSQLiteHarness opens a database file in tb's temporary directory and applies the
// embedded migrations. The harness closes itself when the test ends.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "autoecole.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlstore.Open(context.Background(), migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		tb:    tb,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// Stores exposes the repositories in the shape the application services expect.
func (h *SQLiteHarness) Stores() application.Stores {
	return application.Stores{
		Sessions:  h.Store.Sessions,
		Presence:  h.Store.Presence,
		Exams:     h.Store.Exams,
		Directory: h.Store.Directory,
	}
}

// SeedInstructors stores the instructors or fails the test.
func (h *SQLiteHarness) SeedInstructors(instructors ...scheduler.Instructor) {
	h.tb.Helper()
	for _, instructor := range instructors {
		if err := h.Store.Directory.CreateInstructor(context.Background(), instructor); err != nil {
			h.tb.Fatalf("seed instructor %s: %v", instructor.ID, err)
		}
	}
}

// SeedCandidates stores the candidates or fails the test.
func (h *SQLiteHarness) SeedCandidates(candidates ...scheduler.Candidate) {
	h.tb.Helper()
	for _, candidate := range candidates {
		if err := h.Store.Directory.CreateCandidate(context.Background(), candidate); err != nil {
			h.tb.Fatalf("seed candidate %s: %v", candidate.ID, err)
		}
	}
}

// SeedVehicles stores the vehicles or fails the test.
func (h *SQLiteHarness) SeedVehicles(vehicles ...scheduler.Vehicle) {
	h.tb.Helper()
	for _, vehicle := range vehicles {
		if err := h.Store.Directory.CreateVehicle(context.Background(), vehicle); err != nil {
			h.tb.Fatalf("seed vehicle %s: %v", vehicle.ID, err)
		}
	}
}
