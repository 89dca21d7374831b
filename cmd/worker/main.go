// Package main runs background housekeeping for the postgres deployment:
// expired idempotency keys are purged and pool statistics logged.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"parcelsort/internal/app"
	"parcelsort/internal/config"
	"parcelsort/internal/infrastructure/storage/postgres"
	"parcelsort/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	cleanupEvery := flag.Duration("cleanup-interval", time.Hour, "idempotency cleanup period")
	statsEvery := flag.Duration("stats-interval", time.Minute, "pool stats logging period")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Storage.Driver != config.DriverPostgres {
		log.Infow("nothing to do for storage driver", "driver", cfg.Storage.Driver)
		return
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer a.Close()

	log.Info("starting parcelsort worker")

	w := &Worker{
		pool:         a.Pool,
		idempotency:  a.PGIdempotency,
		cleanupEvery: *cleanupEvery,
		statsEvery:   *statsEvery,
		log:          log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs periodic maintenance against postgres.
type Worker struct {
	pool         *postgres.Pool
	idempotency  *postgres.IdempotencyStore
	cleanupEvery time.Duration
	statsEvery   time.Duration
	log          *logger.Logger
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	cleanup := time.NewTicker(w.cleanupEvery)
	defer cleanup.Stop()
	stats := time.NewTicker(w.statsEvery)
	defer stats.Stop()

	w.cleanupIdempotency(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			w.cleanupIdempotency(ctx)
		case <-stats.C:
			w.pool.LogStats(ctx)
		}
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	n, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
