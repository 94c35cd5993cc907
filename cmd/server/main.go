package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/esrs-tools/csvprep/internal/config"
	"github.com/esrs-tools/csvprep/internal/logging"
	"github.com/esrs-tools/csvprep/internal/pipeline"
	"github.com/esrs-tools/csvprep/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_file_size", cfg.Upload.MaxFileSize,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Create the run service with the built-in transform constants
	service := pipeline.NewService(pipeline.ServiceOptions{
		MaxConcurrent:   cfg.Upload.MaxConcurrent,
		MaxWaitTime:     cfg.Upload.MaxWaitTime,
		RunTimeout:      cfg.Upload.RunTimeout,
		ResultRetention: cfg.Upload.ResultRetention,
	})

	slog.Info("pipeline ready",
		"drop_columns", len(service.Config().DropColumns),
		"key_columns", len(service.Config().KeyColumns),
		"max_cell_length", service.Config().MaxCellLength,
	)

	// Create server with config
	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active runs to complete (with timeout)
		status := service.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
