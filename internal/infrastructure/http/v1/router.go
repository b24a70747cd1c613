// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/series"
	"finbpo/internal/infrastructure/http/v1/handlers"
	"finbpo/internal/infrastructure/http/v1/middleware"
	"finbpo/internal/infrastructure/idempotency"
	"finbpo/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Accounts serves single-account operations
	Accounts *accounts.Service

	// Materializer creates series
	Materializer *series.Materializer

	// SeriesManager runs scoped series updates and deletes
	SeriesManager *series.Manager

	// Idempotency enables X-Idempotency-Key handling when not nil
	Idempotency idempotency.Store

	// HealthChecks are probed by /health/ready
	HealthChecks map[string]handlers.Checker

	// Version is reported by /health/info
	Version string

	// Debug keeps gin in debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	for path, kind := range map[string]accounts.Kind{
		"/receivables": accounts.KindReceivable,
		"/payables":    accounts.KindPayable,
	} {
		h := handlers.NewAccountHandler(base, kind, cfg.Accounts, cfg.Materializer, cfg.SeriesManager)
		h.RegisterRoutes(v1.Group(path))
	}

	return router
}
