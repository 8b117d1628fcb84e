package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/joho/godotenv"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore/migration"
	"github.com/example/autoecole-scheduler/internal/recurrence"
)

// DefaultEnvFile is read by Load when present. Process variables take precedence over it.
const DefaultEnvFile = ".env"

// Config captures environment driven configuration values for the scheduling service.
type Config struct {
	HTTPPort              int
	DBDialect             migration.Dialect
	DBDSN                 string
	APIKeyHash            string
	Location              *time.Location
	ProgressionCacheTTL   time.Duration
	TheoryWeight          float64
	DefaultTheoryCapacity int
	LogLevel              slog.Level
}

// Weights returns the progression weights; the practical track gets the remainder.
func (c Config) Weights() application.ProgressionWeights {
	return application.ProgressionWeights{Theory: c.TheoryWeight, Practical: 1 - c.TheoryWeight}
}

// DatabaseConfig returns the connection settings for the configured dialect.
func (c Config) DatabaseConfig() migration.DatabaseConfig {
	if c.DBDialect == migration.DialectPostgres {
		return migration.DefaultPostgresConfig(c.DBDSN)
	}
	return migration.DefaultSQLiteConfig(c.DBDSN)
}

// Load parses configuration values from the process environment and DefaultEnvFile.
func Load() (Config, error) {
	return LoadFrom(DefaultEnvFile)
}

// LoadFrom parses configuration values from the process environment, falling back to the
// given dotenv file. A missing file is not an error.
//
// Optional fields get defaults; required values are validated and reported with French
// messages listing every missing or invalid variable.
func LoadFrom(envFile string) (Config, error) {
	fileValues := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("lecture du fichier %s impossible: %w", envFile, err)
		}
	}
	lookup := func(key string) string {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
		return strings.TrimSpace(fileValues[key])
	}

	cfg := Config{
		HTTPPort:              8080,
		DBDialect:             migration.DialectSQLite,
		DBDSN:                 "data/autoecole.db",
		ProgressionCacheTTL:   5 * time.Minute,
		TheoryWeight:          0.5,
		DefaultTheoryCapacity: application.DefaultTheoryCapacity,
		LogLevel:              slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := lookup("AUTOECOLE_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "AUTOECOLE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := lookup("AUTOECOLE_DB_DRIVER"); driver != "" {
		dialect, err := migration.ParseDialect(driver)
		if err != nil {
			invalid = append(invalid, "AUTOECOLE_DB_DRIVER")
		} else {
			cfg.DBDialect = dialect
		}
	}

	if dsn := lookup("AUTOECOLE_DB_DSN"); dsn != "" {
		cfg.DBDSN = dsn
	} else if cfg.DBDialect == migration.DialectPostgres {
		missing = append(missing, "AUTOECOLE_DB_DSN")
	}

	if hash := lookup("AUTOECOLE_API_KEY_HASH"); hash == "" {
		missing = append(missing, "AUTOECOLE_API_KEY_HASH")
	} else if _, err := application.NewAPIKeyVerifier(hash); err != nil {
		invalid = append(invalid, "AUTOECOLE_API_KEY_HASH")
	} else {
		cfg.APIKeyHash = hash
	}

	zone := lookup("AUTOECOLE_TIMEZONE")
	if zone == "" {
		zone = recurrence.DefaultTimezone
	}
	if loc, err := time.LoadLocation(zone); err != nil {
		invalid = append(invalid, "AUTOECOLE_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	if ttlValue := lookup("AUTOECOLE_PROGRESSION_CACHE_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl < 0 {
			invalid = append(invalid, "AUTOECOLE_PROGRESSION_CACHE_TTL")
		} else {
			cfg.ProgressionCacheTTL = ttl
		}
	}

	if weightValue := lookup("AUTOECOLE_THEORY_WEIGHT"); weightValue != "" {
		weight, err := strconv.ParseFloat(weightValue, 64)
		if err != nil || weight < 0 || weight > 1 {
			invalid = append(invalid, "AUTOECOLE_THEORY_WEIGHT")
		} else {
			cfg.TheoryWeight = weight
		}
	}

	if capacityValue := lookup("AUTOECOLE_DEFAULT_THEORY_CAPACITY"); capacityValue != "" {
		capacity, err := strconv.Atoi(capacityValue)
		if err != nil || capacity <= 0 {
			invalid = append(invalid, "AUTOECOLE_DEFAULT_THEORY_CAPACITY")
		} else {
			cfg.DefaultTheoryCapacity = capacity
		}
	}

	if levelValue := lookup("AUTOECOLE_LOG_LEVEL"); levelValue != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, "AUTOECOLE_LOG_LEVEL")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("variables d'environnement obligatoires manquantes: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("valeurs de variables d'environnement invalides: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
