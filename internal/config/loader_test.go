package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore/migration"
)

var allVariables = []string{
	"AUTOECOLE_HTTP_PORT",
	"AUTOECOLE_DB_DRIVER",
	"AUTOECOLE_DB_DSN",
	"AUTOECOLE_API_KEY_HASH",
	"AUTOECOLE_TIMEZONE",
	"AUTOECOLE_PROGRESSION_CACHE_TTL",
	"AUTOECOLE_THEORY_WEIGHT",
	"AUTOECOLE_DEFAULT_THEORY_CAPACITY",
	"AUTOECOLE_LOG_LEVEL",
}

func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range allVariables {
		t.Setenv(key, "")
	}
}

func testKeyHash(t *testing.T) string {
	t.Helper()
	hash, err := application.HashAPIKey("cle-de-test", application.Argon2idParams{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16,
	})
	if err != nil {
		t.Fatalf("failed to hash key: %v", err)
	}
	return hash
}

func TestLoader_ParseEnvironment(t *testing.T) {
	noFile := filepath.Join(t.TempDir(), "absent.env")

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnvironment(t)
		hash := testKeyHash(t)
		t.Setenv("AUTOECOLE_API_KEY_HASH", hash)

		cfg, err := LoadFrom(noFile)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.DBDialect != migration.DialectSQLite || cfg.DBDSN != "data/autoecole.db" {
			t.Fatalf("unexpected default database: %s %q", cfg.DBDialect, cfg.DBDSN)
		}
		if cfg.APIKeyHash != hash {
			t.Fatalf("expected api key hash to be kept")
		}
		if cfg.Location == nil || cfg.Location.String() != "Europe/Paris" {
			t.Fatalf("expected Europe/Paris, got %v", cfg.Location)
		}
		if cfg.DefaultTheoryCapacity != application.DefaultTheoryCapacity {
			t.Fatalf("expected default capacity %d, got %d", application.DefaultTheoryCapacity, cfg.DefaultTheoryCapacity)
		}
		if w := cfg.Weights(); w.Theory != 0.5 || w.Practical != 0.5 {
			t.Fatalf("expected equal weights, got %+v", w)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("expected info level, got %s", cfg.LogLevel)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("AUTOECOLE_DB_DRIVER", "postgres")

		_, err := LoadFrom(noFile)
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "variables d'environnement obligatoires manquantes: AUTOECOLE_DB_DSN, AUTOECOLE_API_KEY_HASH"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("AUTOECOLE_API_KEY_HASH", "$2a$10$pas-un-argon2id")
		t.Setenv("AUTOECOLE_HTTP_PORT", "quatre-vingt")
		t.Setenv("AUTOECOLE_THEORY_WEIGHT", "1.5")
		t.Setenv("AUTOECOLE_TIMEZONE", "Mars/Olympus")

		_, err := LoadFrom(noFile)
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "valeurs de variables d'environnement invalides: AUTOECOLE_HTTP_PORT, AUTOECOLE_API_KEY_HASH, AUTOECOLE_TIMEZONE, AUTOECOLE_THEORY_WEIGHT"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("AUTOECOLE_API_KEY_HASH", testKeyHash(t))
		t.Setenv("AUTOECOLE_HTTP_PORT", "9090")
		t.Setenv("AUTOECOLE_DB_DRIVER", "postgresql")
		t.Setenv("AUTOECOLE_DB_DSN", "postgres://autoecole@localhost/autoecole?sslmode=disable")
		t.Setenv("AUTOECOLE_TIMEZONE", "UTC")
		t.Setenv("AUTOECOLE_PROGRESSION_CACHE_TTL", "30s")
		t.Setenv("AUTOECOLE_THEORY_WEIGHT", "0.25")
		t.Setenv("AUTOECOLE_DEFAULT_THEORY_CAPACITY", "12")
		t.Setenv("AUTOECOLE_LOG_LEVEL", "debug")

		cfg, err := LoadFrom(noFile)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.DBDialect != migration.DialectPostgres {
			t.Fatalf("expected postgres dialect, got %s", cfg.DBDialect)
		}
		if db := cfg.DatabaseConfig(); db.Dialect != migration.DialectPostgres || db.DSN != cfg.DBDSN {
			t.Fatalf("unexpected database config: %+v", db)
		}
		if cfg.ProgressionCacheTTL != 30*time.Second {
			t.Fatalf("expected cache TTL 30s, got %s", cfg.ProgressionCacheTTL)
		}
		if w := cfg.Weights(); w.Theory != 0.25 || w.Practical != 0.75 {
			t.Fatalf("expected weights 0.25/0.75, got %+v", w)
		}
		if cfg.DefaultTheoryCapacity != 12 {
			t.Fatalf("expected capacity 12, got %d", cfg.DefaultTheoryCapacity)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("expected debug level, got %s", cfg.LogLevel)
		}
	})

	t.Run("reads the dotenv file with environment precedence", func(t *testing.T) {
		clearEnvironment(t)
		envFile := filepath.Join(t.TempDir(), ".env")
		content := "AUTOECOLE_API_KEY_HASH='" + testKeyHash(t) + "'\nAUTOECOLE_HTTP_PORT=7000\nAUTOECOLE_DB_DSN=/srv/autoecole.db\n"
		if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("AUTOECOLE_HTTP_PORT", "7001")

		cfg, err := LoadFrom(envFile)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7001 {
			t.Fatalf("expected the process variable to win, got %d", cfg.HTTPPort)
		}
		if cfg.DBDSN != "/srv/autoecole.db" {
			t.Fatalf("expected DSN from file, got %q", cfg.DBDSN)
		}
		if cfg.APIKeyHash == "" {
			t.Fatalf("expected api key hash from file")
		}
	})
}
