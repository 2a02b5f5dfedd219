// Command outlay-reconcile runs a one-shot reconciliation of the two
// snapshot locations and prints the published projection, for inspecting a
// deployment without starting the daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"outlay/internal/config"
	"outlay/internal/core"
	"outlay/internal/projection"
	"outlay/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	repo, err := storage.NewSnapshotRepository(cfg.LocalSnapshotPath, cfg.RemoteSnapshotPath, cfg.SyncEnabled)
	if err != nil {
		logger.Error("Failed to initialize snapshot repository", "error", err)
		os.Exit(1)
	}

	repo.Reconcile(ctx)

	s := repo.Load(ctx)
	if s == nil {
		logger.Info("No snapshot present at either location")
		return
	}
	logger.Info("Snapshot state",
		"active_path", repo.ActivePath(ctx),
		"expenses", len(s.Expenses),
		"categories", len(s.Categories),
		"recurring", len(s.RecurringExpenses),
		"budgets", len(s.Budgets))

	if cfg.ProjectionDBPath == "" {
		return
	}
	publisher, err := projection.NewPublisher(cfg.ProjectionDBPath)
	if err != nil {
		logger.Error("Failed to open projection database", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	summaries, err := publisher.ReadAll(ctx)
	if err != nil {
		logger.Error("Failed to read projection", "error", err)
		os.Exit(1)
	}
	for _, ps := range summaries {
		goal := "-"
		if ps.Goal != nil {
			goal = core.FormatAmount(*ps.Goal, ps.Currency)
		}
		fmt.Printf("%s\tspent=%s\tgoal=%s\tupdated=%s\n",
			ps.BudgetName, core.FormatAmount(ps.Spent, ps.Currency), goal,
			ps.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}
