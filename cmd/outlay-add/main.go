// Command outlay-add appends one expense to the snapshot from the command
// line, for quick entry without starting the daemon. The daemon picks the
// new expense up on its next load; while it is running, prefer its own
// entry points.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"outlay/internal/config"
	"outlay/internal/core"
	"outlay/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	name := flag.String("name", "", "expense name")
	amount := flag.String("amount", "", "amount, dot or comma decimal separator")
	date := flag.String("date", "", "date as YYYY-MM-DD (default today)")
	flag.Parse()

	if *name == "" || *amount == "" {
		flag.Usage()
		os.Exit(2)
	}

	parsed, err := core.ParseAmount(*amount)
	if err != nil {
		logger.Error("Invalid amount", "amount", *amount, "error", err)
		os.Exit(1)
	}

	day := core.Today()
	if *date != "" {
		t, err := time.Parse("2006-01-02", *date)
		if err != nil {
			logger.Error("Invalid date", "date", *date, "error", err)
			os.Exit(1)
		}
		day = core.DateOf(t)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSnapshotRepository(cfg.LocalSnapshotPath, cfg.RemoteSnapshotPath, cfg.SyncEnabled)
	if err != nil {
		logger.Error("Failed to initialize snapshot repository", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if cfg.SyncEnabled {
		repo.Reconcile(ctx)
	}

	s := repo.Load(ctx)
	if s == nil {
		s = core.EmptySnapshot()
	}

	e := core.Expense{
		ID:     uuid.New(),
		Date:   day,
		Name:   *name,
		Amount: parsed,
	}
	if err := e.Validate(); err != nil {
		logger.Error("Invalid expense", "error", err)
		os.Exit(1)
	}

	s.Expenses = append(s.Expenses, e)
	if err := repo.Save(ctx, s); err != nil {
		logger.Error("Failed to save snapshot", "error", err)
		os.Exit(1)
	}

	logger.Info("Expense added",
		"id", e.ID,
		"name", e.Name,
		"date", e.Date.String(),
		"amount", core.FormatAmount(e.Amount, cfg.Currency))
}
