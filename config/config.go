// Package config loads Homewright's process-wide configuration from the
// environment, with .env support for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config is everything the composition root needs to wire the service.
type Config struct {
	Port         string
	DBType       string // "sqlite" or "postgres"
	DBConnection string
	ArchiveAfter time.Duration
}

// Load reads configuration from the environment. A missing .env file is
// normal in production.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := Config{
		Port:         envOr("PORT", "8080"),
		DBType:       envOr("DB_TYPE", "sqlite"),
		DBConnection: envOr("DB_CONNECTION", "homewright.sqlite"),
		ArchiveAfter: 0,
	}

	if days := os.Getenv("ARCHIVE_AFTER_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			cfg.ArchiveAfter = time.Duration(n) * 24 * time.Hour
		}
	}
	return cfg
}

// NewLogger builds the process logger. LOG_LEVEL=debug switches to
// development output.
func NewLogger() (*zap.Logger, error) {
	if os.Getenv("LOG_LEVEL") == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
