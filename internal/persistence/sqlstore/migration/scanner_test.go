package migration

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestFileScanner_ScanMigrations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		files         map[string]string // filename -> content
		expectedOrder []string
		expectError   error
		errorContains string
	}{
		{
			name: "sorted by numeric version",
			files: map[string]string{
				"010_exam_records.sql":  "CREATE TABLE exam_records (id TEXT PRIMARY KEY);",
				"002_sessions.sql":      "CREATE TABLE sessions (id TEXT PRIMARY KEY);",
				"001_instructors.sql":   "CREATE TABLE instructors (id TEXT PRIMARY KEY);",
				"README.md":             "# notes",
				"nested/003_ignore.sql": "CREATE TABLE nested (id TEXT);",
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name:          "empty directory",
			files:         map[string]string{".keep": ""},
			expectedOrder: nil,
		},
		{
			name: "invalid filename",
			files: map[string]string{
				"001_instructors.sql": "CREATE TABLE instructors (id TEXT PRIMARY KEY);",
				"presence.sql":        "CREATE TABLE presence (id TEXT);",
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "duplicate version",
			files: map[string]string{
				"001_instructors.sql": "CREATE TABLE instructors (id TEXT PRIMARY KEY);",
				"1_vehicles.sql":      "CREATE TABLE vehicles (id TEXT PRIMARY KEY);",
			},
			expectError: ErrDuplicateVersion,
		},
		{
			name: "empty file",
			files: map[string]string{
				"001_instructors.sql": "   \n",
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := fstest.MapFS{}
			for name, content := range tt.files {
				fsys["migrations/"+name] = &fstest.MapFile{Data: []byte(content)}
			}

			migrations, err := NewFileScanner().ScanMigrations(fsys, "migrations")
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error to contain %q, got %v", tt.errorContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("expected version %s at %d, got %s", version, i, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Fatalf("expected checksum for %s", version)
				}
			}
		})
	}
}

func TestFileScanner_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewFileScanner().ScanMigrations(fstest.MapFS{}, "migrations")
	var migErr *MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("expected migration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestFileScanner_ParseMigrationFile(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"m/001_core_schema.sql": {Data: []byte("-- Description: Core driving school tables\nCREATE TABLE sessions (id TEXT PRIMARY KEY);\n")},
		"m/002_add_index.sql":   {Data: []byte("CREATE INDEX idx ON sessions(id);")},
		"m/003_broken.sql":      {Data: []byte("CREATE TABLE broken (id TEXT;")},
		"m/004_quote.sql":       {Data: []byte("INSERT INTO t VALUES ('open);")},
		"m/005_comments.sql":    {Data: []byte("-- only a comment\n")},
	}
	scanner := NewFileScanner()

	described, err := scanner.ParseMigrationFile(fsys, "m/001_core_schema.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if described.Description != "Core driving school tables" {
		t.Fatalf("expected description from header, got %q", described.Description)
	}

	fallback, err := scanner.ParseMigrationFile(fsys, "m/002_add_index.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fallback.Description != "add index" {
		t.Fatalf("expected description from filename, got %q", fallback.Description)
	}

	for _, path := range []string{"m/003_broken.sql", "m/004_quote.sql", "m/005_comments.sql"} {
		if _, err := scanner.ParseMigrationFile(fsys, path); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected invalid migration file for %s, got %v", path, err)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	sql := `
-- sessions
CREATE TABLE a (id TEXT);

CREATE INDEX idx_a ON a(id); -- trailing
;
`
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if !strings.HasPrefix(statements[1], "CREATE INDEX") {
		t.Fatalf("unexpected second statement %q", statements[1])
	}
}
