// Package cli provides the startup steps shared by fintrack commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// SetupLogger builds the app logger at the given level and makes it the
// slog default, so packages logging through slog directly share its handler.
// An unknown level falls back to info.
func SetupLogger(level string) *log.Logger {
	lvl, err := config.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenLedger opens the database at cfg.DBPath, applies pending migrations and
// returns a ledger configured from cfg. The caller closes the engine.
func OpenLedger(ctx context.Context, logger *log.Logger, cfg *config.Config) (*services.Ledger, *storage.Engine, error) {
	engine := storage.NewEngine(cfg.DBPath,
		storage.WithBusyTimeout(cfg.SQLiteBusyTimeout),
		storage.WithLogger(logger))
	if _, err := engine.Open(ctx); err != nil {
		return nil, nil, err
	}
	if err := engine.InitSchema(ctx); err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("init schema: %w", err)
	}

	ledger := services.NewLedger(engine,
		services.WithLogger(logger),
		services.WithRecentLimit(cfg.RecentLimit),
		services.WithTopCategories(cfg.TopCategoriesLimit, cfg.TopCategoriesWindow),
		services.WithSummaryCache(cfg.SummaryCacheTTL),
	)

	logger.Info("Ledger ready",
		log.FieldOperation, log.OpStartup,
		log.FieldDBPath, cfg.DBPath)
	return ledger, engine, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
