package main

import (
	"context"
	"fmt"

	"finbpo/internal/config"
	"finbpo/internal/core/tx"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/audit"
	"finbpo/internal/infrastructure/http/v1/handlers"
	"finbpo/internal/infrastructure/idempotency"
	"finbpo/internal/infrastructure/storage/memory"
	"finbpo/internal/infrastructure/storage/postgres"
	"finbpo/internal/infrastructure/storage/postgres/account_repo"
	"finbpo/internal/infrastructure/storage/postgres/schema"
	"finbpo/pkg/logger"
)

// storage bundles the stores selected by the storage driver.
type storage struct {
	Accounts     accounts.Repository
	TxManager    tx.Manager
	Audit        audit.Recorder
	Idempotency  idempotency.Store
	HealthChecks map[string]handlers.Checker

	close func()
}

// Close releases connections held by the stores.
func (s *storage) Close() {
	if s.close != nil {
		s.close()
	}
}

func openStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		return &storage{
			Accounts:     memory.NewAccountRepo(),
			TxManager:    memory.NewTxManager(),
			Audit:        memory.NewAuditLog(),
			Idempotency:  memory.NewIdempotencyStore(cfg.Idempotency.TTL),
			HealthChecks: map[string]handlers.Checker{},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Storage.Pool)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.MigrateOnStart {
		if err := schema.Migrate(ctx, pool.Pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	txm := postgres.NewTxManager(pool)
	auditLog, err := postgres.NewAuditLog(txm, cfg.Storage.AuditCompressAbove)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit log: %w", err)
	}

	return &storage{
		Accounts:     account_repo.New(txm),
		TxManager:    txm,
		Audit:        auditLog,
		Idempotency:  postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		HealthChecks: map[string]handlers.Checker{"database": pool},
		close:        pool.Close,
	}, nil
}
