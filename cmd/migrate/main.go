// Package main applies the database schema.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"finbpo/internal/config"
	"finbpo/internal/infrastructure/storage/postgres"
	"finbpo/internal/infrastructure/storage/postgres/schema"
	"finbpo/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		fmt.Println("nothing to migrate: storage driver is not postgres")
		return
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Development()})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Storage.Pool)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer pool.Close()

	if err := schema.Migrate(ctx, pool.Pool); err != nil {
		log.Fatalw("migration failed", "error", err)
	}
	log.Info("migration complete")
}
