// Package main is the entry point for the finbpo background worker.
// It expires idempotency keys and reports pool statistics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"finbpo/internal/config"
	"finbpo/internal/infrastructure/storage/postgres"
	"finbpo/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.Storage.Driver != config.DriverPostgres {
		log.Info("worker has nothing to do without the postgres driver")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting finbpo worker")

	pool, err := postgres.NewPool(ctx, cfg.Storage.Pool)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	worker := NewWorker(pool, postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL), log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx, getEnvDuration("WORKER_INTERVAL", 5*time.Minute))
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

// Worker runs periodic maintenance against one database.
type Worker struct {
	pool *postgres.Pool
	keys *postgres.IdempotencyStore
	log  *logger.Logger
}

// NewWorker creates a Worker.
func NewWorker(pool *postgres.Pool, keys *postgres.IdempotencyStore, log *logger.Logger) *Worker {
	return &Worker{
		pool: pool,
		keys: keys,
		log:  log.WithComponent("worker"),
	}
}

// Run ticks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	removed, err := w.keys.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if removed > 0 {
		w.log.Infow("expired idempotency keys removed", "count", removed)
	}
	w.pool.LogStats(ctx)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
