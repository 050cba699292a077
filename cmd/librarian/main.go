// cmd/librarian/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"lendingdesk/internal/app"
	"lendingdesk/internal/config"
	"lendingdesk/internal/console"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lib, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open library", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer lib.Close()

	if err := console.New(lib, os.Stdin, os.Stdout).Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("console stopped", "error", err)
		os.Exit(1)
	}
}
