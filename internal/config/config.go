package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBPath            string
	SQLiteBusyTimeout time.Duration

	// Seed data loaded into an empty categories table
	SeedFile string

	// Read-models
	RecentLimit         int
	TopCategoriesLimit  int
	TopCategoriesWindow time.Duration
	SummaryCacheTTL     time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		DBPath:            getEnv("FINTRACK_DB_PATH", "./data/finance.db"),
		SQLiteBusyTimeout: getEnvDuration("SQLITE_BUSY_TIMEOUT", 5*time.Second),

		SeedFile: getEnv("FINTRACK_SEED_FILE", ""),

		RecentLimit:         getEnvInt("RECENT_LIMIT", 3),
		TopCategoriesLimit:  getEnvInt("TOP_CATEGORIES_LIMIT", 5),
		TopCategoriesWindow: getEnvDuration("TOP_CATEGORIES_WINDOW", 30*24*time.Hour),
		SummaryCacheTTL:     getEnvDuration("SUMMARY_CACHE_TTL", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.DBPath) == "" {
		errors = append(errors, "database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if info, err := os.Stat(dir); err == nil && !info.IsDir() {
				errors = append(errors, fmt.Sprintf("database directory '%s' is not a directory", dir))
			}
		}
	}

	if c.SQLiteBusyTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid sqlite busy timeout %v: must not be negative", c.SQLiteBusyTimeout))
	} else if c.SQLiteBusyTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sqlite busy timeout %v: must be at most 1 minute", c.SQLiteBusyTimeout))
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
		}
	}

	if c.RecentLimit < 1 || c.RecentLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid recent limit %d: must be between 1 and 100", c.RecentLimit))
	}

	if c.TopCategoriesLimit < 1 || c.TopCategoriesLimit > 50 {
		errors = append(errors, fmt.Sprintf("invalid top categories limit %d: must be between 1 and 50", c.TopCategoriesLimit))
	}

	if c.TopCategoriesWindow < 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid top categories window %v: must be at least 24 hours", c.TopCategoriesWindow))
	} else if c.TopCategoriesWindow > 366*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid top categories window %v: must be at most one year", c.TopCategoriesWindow))
	}

	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache ttl %v: must not be negative", c.SummaryCacheTTL))
	} else if c.SummaryCacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid summary cache ttl %v: must be at most 1 hour", c.SummaryCacheTTL))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of [debug info warn error]", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
