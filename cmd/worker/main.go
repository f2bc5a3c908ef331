package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"beacon/internal/bootstrap"
	"beacon/internal/config"
	"beacon/internal/domain/notification"
	"beacon/internal/infra/queue"
	"beacon/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)

	slog.Info("worker configuration loaded")

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		slog.Error("failed to initialize notification dispatcher", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	notifWorker := notification.NewWorker(app.Dispatcher, app.Categories)

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	mux := queue.NewServeMux(notifWorker)

	slog.Info("worker starting",
		"concurrency", cfg.Queue.Concurrency,
		"redis", cfg.Redis.Address,
		"transports", app.Dispatcher.Transports(),
	)
	if err := asynqServer.Start(mux); err != nil {
		slog.Error("worker failed to start", "error", err)
		os.Exit(1)
	}

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
