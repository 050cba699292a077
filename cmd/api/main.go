// cmd/api/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"lendingdesk/internal/app"
	"lendingdesk/internal/config"
	"lendingdesk/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := cfg.SetupTracing(ctx, "lendingdesk-api")
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	shutdownMetrics, err := cfg.SetupMetrics(ctx, "lendingdesk-api")
	if err != nil {
		logger.Error("failed to set up metrics", "error", err)
		os.Exit(1)
	}
	defer shutdownMetrics(context.Background())

	lib, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open library", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer lib.Close()

	logger.Info("library opened", "driver", cfg.Storage.Driver, "max_active_loans", cfg.MaxActiveLoans)

	srv := server.New(":"+cfg.Port, server.NewRouter(lib, logger))
	if err := server.Run(ctx, srv, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
