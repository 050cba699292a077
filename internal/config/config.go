// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Port                  string
	LogLevel              slog.Level
	Storage               StorageConfig
	MaxActiveLoans        int
	RegisterRatePerMinute int
	OTLPEndpoint          string
}

// StorageConfig selects and locates the persistence backend
type StorageConfig struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// Load reads configuration from a .env file, when present, and environment
// variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	driver := strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", DriverSQLite)))
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: '%s' (must be '%s' or '%s')", driver, DriverSQLite, DriverPostgres)
	}

	databaseURL := getEnv("DATABASE_URL", "")
	if driver == DriverPostgres && databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required when STORAGE_DRIVER is postgres")
	}

	maxActive, err := getInt("MAX_ACTIVE_LOANS", 5)
	if err != nil {
		return nil, err
	}
	if maxActive <= 0 {
		return nil, fmt.Errorf("invalid MAX_ACTIVE_LOANS: %d (must be positive)", maxActive)
	}

	registerRate, err := getInt("REGISTER_RATE_PER_MINUTE", 30)
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: level,
		Storage: StorageConfig{
			Driver:      driver,
			DatabaseURL: databaseURL,
			SQLitePath:  getEnv("SQLITE_PATH", "library.db"),
		},
		MaxActiveLoans:        maxActive,
		RegisterRatePerMinute: registerRate,
		OTLPEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}, nil
}

// NewLogger returns a JSON logger writing to stderr at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: '%s' (must be an integer)", key, raw)
	}
	return n, nil
}
