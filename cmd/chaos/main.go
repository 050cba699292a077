// cmd/chaos/main.go
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"lendingdesk/internal/app"
	"lendingdesk/internal/chaos"
	"lendingdesk/internal/config"
)

func main() {
	window := flag.Duration("window", chaos.DefaultWindow, "how long each experiment observes the library")
	pause := flag.Duration("pause", 0, "wait between experiments")
	configured := flag.Bool("configured-storage", false,
		"run against the configured database instead of a scratch in-memory one; experiment rows stay behind")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := cfg.SetupTracing(ctx, "lendingdesk-chaos")
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	shutdownMetrics, err := cfg.SetupMetrics(ctx, "lendingdesk-chaos")
	if err != nil {
		logger.Error("failed to set up metrics", "error", err)
		os.Exit(1)
	}
	defer shutdownMetrics(context.Background())

	// Experiments register many readers at once.
	cfg.RegisterRatePerMinute = 0
	if !*configured {
		cfg.Storage = chaos.ScratchStorage()
	}

	lib, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open library", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer lib.Close()

	engine := chaos.NewEngine(lib, cfg.MaxActiveLoans, os.Stdout)
	engine.Pause = *pause
	engine.RegisterExperiments(*window)

	gameDay := chaos.GameDay{
		Name:      "Library Consistency Game Day",
		Date:      time.Now(),
		Scenarios: engine.GetExperiments(),
	}

	if err := engine.ExecuteGameDay(ctx, gameDay); err != nil {
		logger.Error("game day failed", "error", err)
		os.Exit(1)
	}
}
