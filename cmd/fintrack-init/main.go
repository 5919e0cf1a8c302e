// Command fintrack-init prepares the ledger database: it applies migrations,
// optionally wipes every row, seeds categories and repairs drifted balances.
package main

import (
	"flag"
	"os"

	"fintrack/internal/cli"
	"fintrack/internal/log"
)

func main() {
	reset := flag.Bool("reset", false, "delete every account, category and transaction first")
	reconcile := flag.Bool("reconcile", true, "recompute stored balances from transaction history")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	ledger, engine, err := cli.OpenLedger(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, log.FieldDBPath, cfg.DBPath)
		os.Exit(1)
	}
	defer engine.Close()

	if *reset {
		if err := ledger.ResetAll(ctx); err != nil {
			logger.Error("Reset failed", log.FieldError, err)
			os.Exit(1)
		}
	}

	if cfg.SeedFile != "" {
		if _, err := ledger.SeedCategories(ctx, cfg.SeedFile); err != nil {
			logger.Error("Seeding categories failed", log.FieldError, err, "path", cfg.SeedFile)
			os.Exit(1)
		}
	}

	if *reconcile {
		drifts, err := ledger.ReconcileBalances(ctx)
		if err != nil {
			logger.Error("Reconciliation failed", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Balances checked", "corrected", len(drifts))
	}

	d, err := ledger.Dashboard(ctx)
	if err != nil {
		logger.Error("Failed to load dashboard", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Ledger summary",
		"accounts", len(d.Accounts),
		"total_balance", d.TotalBalance.String(),
		"months_with_spending", len(d.MonthlySpend),
		"top_categories", len(d.TopCategories))
}
