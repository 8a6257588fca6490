// Tally - credit and sales intelligence for small shops.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/tally/internal/api"
	"github.com/opensource-finance/tally/internal/bus"
	"github.com/opensource-finance/tally/internal/cache"
	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/engine"
	"github.com/opensource-finance/tally/internal/repository"
	"github.com/opensource-finance/tally/internal/worker"
)

// Set via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting tally",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("tally stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("tally shutdown complete")
}

// run assembles the service and blocks until ctx is cancelled or the HTTP
// server fails. Backends are closed in reverse order of creation.
func run(ctx context.Context, cfg *domain.Config) error {
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("repository: %w", err)
	}
	defer repo.Close()

	leases, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer leases.Close()

	events, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	defer events.Close()

	eng, err := engine.New(repo, engine.WithPolicy(cfg.Policy))
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if cfg.Scheduler.SaleWorker {
		saleWorker := worker.NewWorker(events, eng)
		if err := saleWorker.Start(); err != nil {
			return fmt.Errorf("sale worker: %w", err)
		}
		defer func() {
			if err := saleWorker.Stop(); err != nil {
				slog.Error("failed to stop sale worker", "error", err)
			}
		}()
	}

	scheduler := worker.NewScheduler(eng, leases, events, cfg.Scheduler)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer scheduler.Stop()

	srv := api.NewServer(cfg.Server, eng, scheduler, repo, leases, events, Version)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	printBanner(cfg, Version)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	return nil
}

// newLogger builds the process logger. TALLY_DEBUG=true forces debug level.
func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if os.Getenv("TALLY_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

var endpoints = []struct{ method, path, about string }{
	{"GET", "/risk", "Credit risk per client"},
	{"GET", "/risk/{clientID}", "Credit risk for one client"},
	{"GET", "/risk/rules", "Risk rules in effect"},
	{"PUT", "/risk/rules", "Replace the risk rules"},
	{"GET", "/reminders/suggestions", "Who to call today"},
	{"POST", "/reminders/scan", "Create overdue reminders now"},
	{"POST", "/anomalies/check", "Check a sale before saving it"},
	{"GET", "/insights", "Business insights"},
	{"GET", "/forecast", "Month-end sales forecast"},
	{"GET", "/vip", "Loyalty scores"},
	{"GET", "/vip/{clientID}", "Loyalty score for one client"},
	{"GET", "/coaching", "Daily tip and weekly summary"},
	{"GET", "/health", "Health check"},
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Printf("\n  TALLY %s  (%s tier, %s store)\n", version, cfg.Tier, cfg.Repository.Driver)
	fmt.Printf("  Listening on http://%s:%d\n\n", cfg.Server.Host, cfg.Server.Port)
	for _, e := range endpoints {
		fmt.Printf("    %-4s %-24s %s\n", e.method, e.path, e.about)
	}
	fmt.Println()
}
