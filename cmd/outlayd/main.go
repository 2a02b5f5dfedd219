package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"outlay/internal/amqp"
	"outlay/internal/config"
	"outlay/internal/projection"
	"outlay/internal/services"
	"outlay/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting outlayd")

	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize snapshot repository over the two candidate locations
	repo, err := storage.NewSnapshotRepository(cfg.LocalSnapshotPath, cfg.RemoteSnapshotPath, cfg.SyncEnabled)
	if err != nil {
		logger.Error("Failed to initialize snapshot repository", "error", err,
			"local", cfg.LocalSnapshotPath, "remote", cfg.RemoteSnapshotPath)
		os.Exit(1)
	}

	// Initialize the shared projection database for widget consumers
	var opts []services.Option
	if cfg.ProjectionDBPath != "" {
		publisher, err := projection.NewPublisher(cfg.ProjectionDBPath)
		if err != nil {
			logger.Error("Failed to initialize projection publisher", "error", err, "path", cfg.ProjectionDBPath)
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, services.WithProjection(publisher))
		logger.Info("Projection publisher initialized", "path", cfg.ProjectionDBPath)
	} else {
		logger.Info("Projection disabled - no PROJECTION_DB_PATH provided")
	}

	// Initialize AMQP client for change notifications (optional)
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change notifications", "error", err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, services.WithNotifier(amqpClient))
			logger.Info("AMQP client initialized - change notifications enabled")
		}
	} else {
		logger.Info("AMQP disabled - no change notifications")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the store coordinator: reconcile, load, migrate, generate
	coordinator := services.NewStoreCoordinator(repo, cfg.Settings(), opts...)
	if err := coordinator.Start(ctx); err != nil {
		logger.Error("Failed to start store coordinator", "error", err)
		os.Exit(1)
	}

	logger.Info("Recurring generation configured", "interval", cfg.GenerateInterval)

	// Periodic generation: re-running with "now" is idempotent, so ticks
	// are safe however close together they land.
	ticker := time.NewTicker(cfg.GenerateInterval)
	defer ticker.Stop()

	tickerDone := make(chan struct{})
	go func() {
		defer close(tickerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if count := coordinator.GenerateNow(ctx); count > 0 {
					logger.Info("Periodic generation complete", "expenses_created", count)
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Graceful shutdown: drain pending saves before exiting
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down outlayd...")
	// The ticker goroutine must be fully stopped before the coordinator
	// closes its save queue; a late tick would otherwise commit into a
	// closed channel.
	cancel()
	<-tickerDone
	if err := coordinator.Stop(shutdownCtx); err != nil {
		logger.Warn("Coordinator shutdown incomplete", "error", err)
	}
	logger.Info("outlayd shutdown complete")
}
