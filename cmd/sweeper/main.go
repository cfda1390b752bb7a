package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"static-ads-backend/internal/config"
	"static-ads-backend/internal/generation"
	"static-ads-backend/internal/store"
)

// sweeper fails generations left pending past STALE_PENDING_MINUTES and
// exits. It is meant for cron.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StoreDriver == store.DriverMemory {
		logger.Error("sweeper needs a persistent store", "driver", cfg.StoreDriver)
		os.Exit(1)
	}

	st, closeStore, err := store.Open(ctx, store.OpenOptions{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		Silent:      true,
	})
	if err != nil {
		logger.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer func() { _ = closeStore() }()

	gens := generation.NewManager(generation.Options{Store: st, Logger: logger})

	n, err := gens.ReconcileStale(ctx, cfg.StalePending)
	if err != nil {
		logger.Error("sweep failed", "err", err)
		os.Exit(1)
	}
	logger.Info("sweep finished", "failed", n, "older_than", cfg.StalePending.String())
}
