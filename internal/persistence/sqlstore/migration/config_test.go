package migration

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDialect(t *testing.T) {
	t.Parallel()

	cases := map[string]Dialect{
		"":            DialectSQLite,
		"sqlite":      DialectSQLite,
		"SQLite3":     DialectSQLite,
		"postgres":    DialectPostgres,
		" postgresql": DialectPostgres,
		"pq":          DialectPostgres,
	}
	for input, want := range cases {
		got, err := ParseDialect(input)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("expected %s for %q, got %s", want, input, got)
		}
	}

	if _, err := ParseDialect("mysql"); !errors.Is(err, ErrUnknownDialect) {
		t.Fatalf("expected unknown dialect, got %v", err)
	}
}

func TestDialectRebind(t *testing.T) {
	t.Parallel()

	query := "SELECT id FROM sessions WHERE instructor_id = ? AND start_time < ? AND end_time > ?"
	if got := DialectSQLite.Rebind(query); got != query {
		t.Fatalf("expected sqlite query untouched, got %s", got)
	}
	want := "SELECT id FROM sessions WHERE instructor_id = $1 AND start_time < $2 AND end_time > $3"
	if got := DialectPostgres.Rebind(query); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if DialectPostgres.DriverName() != "postgres" || DialectSQLite.DriverName() != "sqlite" {
		t.Fatalf("unexpected driver names")
	}
}

func TestConnectionManager_ValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  DatabaseConfig
		wantErr string
	}{
		{name: "default sqlite", config: DefaultSQLiteConfig("data/autoecole.db")},
		{name: "default postgres", config: DefaultPostgresConfig("postgres://localhost/autoecole")},
		{name: "empty dsn", config: DatabaseConfig{}, wantErr: "DSN cannot be empty"},
		{name: "unknown dialect", config: DatabaseConfig{Dialect: "oracle", DSN: "x"}, wantErr: "unknown database dialect"},
		{name: "negative busy timeout", config: DatabaseConfig{DSN: "x", BusyTimeout: -time.Second}, wantErr: "BusyTimeout"},
		{name: "bad journal mode", config: DatabaseConfig{DSN: "x", JournalMode: "FAST"}, wantErr: "journal mode"},
		{name: "bad synchronous mode", config: DatabaseConfig{DSN: "x", Synchronous: "SOMETIMES"}, wantErr: "synchronous mode"},
		{name: "negative pool", config: DatabaseConfig{DSN: "x", MaxOpenConns: -1}, wantErr: "MaxOpenConns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewConnectionManager(tt.config).ValidateConfig()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSQLiteDSNCarriesPragmas(t *testing.T) {
	t.Parallel()

	cm := &connectionManager{config: DefaultSQLiteConfig("/var/lib/autoecole/data.db")}
	dsn := cm.sqliteDSN()
	if !strings.HasPrefix(dsn, "file:/var/lib/autoecole/data.db?") {
		t.Fatalf("unexpected dsn prefix: %s", dsn)
	}
	query, err := url.ParseQuery(dsn[strings.Index(dsn, "?")+1:])
	if err != nil {
		t.Fatalf("failed to parse dsn query: %v", err)
	}
	pragmas := strings.Join(query["_pragma"], ",")
	for _, want := range []string{"busy_timeout(10000)", "foreign_keys(1)", "journal_mode(WAL)", "synchronous(NORMAL)"} {
		if !strings.Contains(pragmas, want) {
			t.Fatalf("expected pragma %s in %s", want, pragmas)
		}
	}
	if query.Get("_txlock") != "immediate" {
		t.Fatalf("expected immediate transactions, got %q", query.Get("_txlock"))
	}
}

func TestGetConnectionCreatesDatabaseDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "autoecole.db")
	db, err := NewConnectionManager(TempFileTestSQLiteConfig(path)).GetConnection(context.Background())
	if err != nil {
		t.Fatalf("expected connection, got %v", err)
	}
	defer db.Close()

	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("failed to read pragma: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("expected foreign keys enabled, got %d", enabled)
	}
}
