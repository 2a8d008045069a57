// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const devJWTSecret = "wms-dev-secret-change-me"

// Config is filled from environment variables, optionally seeded by a .env file.
type Config struct {
	Env           string `env:"APP_ENV" envDefault:"development"`
	Addr          string `env:"APP_ADDR" envDefault:":8080"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"wms.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"wms-dev-secret-change-me"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"12h"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	LogFormat     string `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	OutboxMaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"5"`

	ReservationChunkSize int `env:"RESERVATION_CHUNK_SIZE" envDefault:"100"`
}

// Load reads files (default ".env") if present, then the process environment.
// Missing env files are not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports APP_ENV=production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("SQLITE_PATH is required")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("outbox batch size and max attempts must be positive")
	}
	if c.ReservationChunkSize <= 0 {
		return fmt.Errorf("RESERVATION_CHUNK_SIZE must be positive")
	}
	return nil
}
