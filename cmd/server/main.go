package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"eligo/internal/housekeeping"
	"eligo/internal/platform/config"
	"eligo/internal/platform/httpserver"
	"eligo/internal/platform/logger"
	"eligo/pkg/platform/audit/worker"
)

// main wires dependencies and keeps the process lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := httpserver.New(cfg.Server.Addr, newRouter(app, log))
	sweeper := housekeeping.New(app.simulation, app.migration,
		housekeeping.WithLogger(log),
		housekeeping.WithInterval(cfg.Session.SweepInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, srv, log, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return ignoreCancel(sweeper.Run(ctx))
	})
	if app.producer != nil {
		relay := worker.NewRelay(app.auditStore, app.producer,
			worker.WithLogger(log),
			worker.WithBatchSize(cfg.Kafka.BatchSize),
			worker.WithPollInterval(cfg.Kafka.PollInterval),
		)
		g.Go(func() error {
			return ignoreCancel(relay.Run(ctx))
		})
	}

	log.Info("eligo started",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"postgres", app.db != nil,
		"redis", app.redis != nil,
		"kafka", app.producer != nil,
	)
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
