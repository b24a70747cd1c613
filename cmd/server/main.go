// Package main is the entry point for the finbpo API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finbpo/internal/config"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/series"
	"finbpo/internal/domain/auth"
	v1 "finbpo/internal/infrastructure/http/v1"
	"finbpo/internal/observability/metrics"
	"finbpo/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

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

	ctx := context.Background()
	log.Infow("starting finbpo server", "version", version, "storage", cfg.Storage.Driver)

	metrics.Init()

	// --- Storage ---
	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer store.Close()

	// --- Domain services ---
	accountService := accounts.NewService(accounts.ServiceConfig{
		Repo:      store.Accounts,
		TxManager: store.TxManager,
		Audit:     store.Audit,
		Policy:    cfg.Series,
	})
	deps := series.Deps{
		Accounts:  accountService,
		Repo:      store.Accounts,
		TxManager: store.TxManager,
	}

	// --- JWT ---
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "dev-secret-change-in-production"
		log.Warn("JWT_SECRET not set, using development secret")
	}
	jwtConfig := auth.DefaultJWTConfig(jwtSecret)
	jwtConfig.Issuer = cfg.Auth.Issuer
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:        log,
		JWTValidator:  jwtService,
		Accounts:      accountService,
		Materializer:  series.NewMaterializer(deps),
		SeriesManager: series.NewManager(deps),
		HealthChecks:  store.HealthChecks,
		Version:       version,
		Debug:         cfg.Development(),
	}
	if cfg.Idempotency.Enabled {
		routerCfg.Idempotency = store.Idempotency
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
