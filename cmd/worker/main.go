// Package main is the entry point for the background worker: it relays
// order events from the outbox and expires idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/app"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/config"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres"
	"github.com/SagorIslamOfficial/crm-order-sub001/pkg/logger"
)

const (
	dlqInterval     = time.Minute
	cleanupInterval = 10 * time.Minute
	statsInterval   = 5 * time.Minute
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log = log.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	relay := postgres.NewOutboxRelay(a.TxManager, cfg.Outbox.BatchSize, postgres.LogOutboxHandler())
	idempotency := postgres.NewIdempotencyStore(a.TxManager, cfg.Idempotency.TTL)

	log.Infow("worker started", "batch_size", cfg.Outbox.BatchSize, "poll_interval", cfg.Outbox.PollInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return every(ctx, cfg.Outbox.PollInterval, func(ctx context.Context) {
			// Drain while full batches keep coming.
			for {
				n, err := relay.ProcessBatch(ctx)
				if err != nil {
					logger.Error(ctx, "outbox batch failed", "error", err)
					return
				}
				if n > 0 {
					logger.Debug(ctx, "outbox batch delivered", "count", n)
				}
				if n < cfg.Outbox.BatchSize || ctx.Err() != nil {
					return
				}
			}
		})
	})
	g.Go(func() error {
		return every(ctx, dlqInterval, func(ctx context.Context) {
			moved, err := relay.MoveToDLQ(ctx)
			if err != nil {
				logger.Error(ctx, "outbox DLQ move failed", "error", err)
				return
			}
			if moved > 0 {
				logger.Warn(ctx, "outbox messages moved to DLQ", "count", moved)
			}
		})
	})
	g.Go(func() error {
		return every(ctx, cleanupInterval, func(ctx context.Context) {
			deleted, err := idempotency.CleanupExpired(ctx)
			if err != nil {
				logger.Error(ctx, "idempotency cleanup failed", "error", err)
				return
			}
			if deleted > 0 {
				logger.Info(ctx, "expired idempotency keys removed", "count", deleted)
			}
		})
	})
	g.Go(func() error {
		return every(ctx, statsInterval, func(ctx context.Context) {
			postgres.LogPoolStats(ctx, a.Pool.Unwrap())
		})
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Errorw("worker stopped with error", "error", err)
		return
	}
	log.Info("worker stopped")
}

// every runs fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
