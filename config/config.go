// Package config loads the process configuration from the environment
// (with optional .env support) and bootstraps the root logger.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Stream backends.
const (
	StreamMemory   = "memory"
	StreamPostgres = "postgres"
)

// Config is the process configuration, read from FLOWGRID_* environment
// variables.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// Workers is the executor worker-pool size.
	Workers int

	// MaxSlotsPerUser caps concurrently running test-case tasks per user.
	MaxSlotsPerUser int

	// JWTSecret signs and verifies stream-access tokens.
	JWTSecret string

	// StreamBackend selects the event stream implementation.
	StreamBackend string

	// PostgresDSN is required when StreamBackend is postgres.
	PostgresDSN string

	// SoftLimit and HardLimit bound test-case runs.
	SoftLimit time.Duration
	HardLimit time.Duration

	// LogLevel is a zerolog level name. LogPretty enables the console writer.
	LogLevel  string
	LogPretty bool
}

// Load reads the configuration. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		ListenAddr:      envString("FLOWGRID_LISTEN_ADDR", ":8080"),
		Workers:         envInt("FLOWGRID_WORKERS", 8),
		MaxSlotsPerUser: envInt("FLOWGRID_MAX_SLOTS_PER_USER", 2),
		JWTSecret:       envString("FLOWGRID_JWT_SECRET", ""),
		StreamBackend:   envString("FLOWGRID_STREAM_BACKEND", StreamMemory),
		PostgresDSN:     envString("FLOWGRID_POSTGRES_DSN", ""),
		SoftLimit:       envDuration("FLOWGRID_SOFT_LIMIT", 3540*time.Second),
		HardLimit:       envDuration("FLOWGRID_HARD_LIMIT", 3600*time.Second),
		LogLevel:        envString("FLOWGRID_LOG_LEVEL", "info"),
		LogPretty:       envBool("FLOWGRID_LOG_PRETTY", false),
	}

	if config.JWTSecret == "" {
		return nil, fmt.Errorf("FLOWGRID_JWT_SECRET is required")
	}
	if config.StreamBackend != StreamMemory && config.StreamBackend != StreamPostgres {
		return nil, fmt.Errorf("unknown stream backend %q", config.StreamBackend)
	}
	if config.StreamBackend == StreamPostgres && config.PostgresDSN == "" {
		return nil, fmt.Errorf("FLOWGRID_POSTGRES_DSN is required for the postgres stream backend")
	}
	if config.SoftLimit >= config.HardLimit {
		return nil, fmt.Errorf("soft limit %s must be below hard limit %s", config.SoftLimit, config.HardLimit)
	}

	return config, nil
}

// NewLogger builds the root logger from the configuration.
func NewLogger(config *Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if config.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
