// Package config loads process configuration from environment variables with
// an optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"finbpo/internal/domain/accounts"
	"finbpo/internal/infrastructure/storage/postgres"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Env      string `yaml:"env"`
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Storage     StorageConfig     `yaml:"storage"`
	Auth        AuthConfig        `yaml:"auth"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Series      accounts.Policy   `yaml:"series"`
}

// StorageConfig selects and tunes the persistence backend.
type StorageConfig struct {
	Driver             string              `yaml:"driver"`
	DatabaseURL        string              `yaml:"-"`
	Pool               postgres.PoolConfig `yaml:"pool"`
	AuditCompressAbove int                 `yaml:"audit_compress_above"`
	MigrateOnStart     bool                `yaml:"migrate_on_start"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string `yaml:"-"`
	Issuer    string `yaml:"issuer"`
}

// IdempotencyConfig configures the X-Idempotency-Key middleware.
type IdempotencyConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Development reports whether the process runs with development logging.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Load builds the configuration from the environment. When FINBPO_CONFIG
// names a YAML file it is applied on top of the environment defaults.
// Secrets are only read from the environment.
func Load() (Config, error) {
	cfg := Config{
		Env:      getenvDefault("APP_ENV", "development"),
		Port:     getenvDefault("APP_PORT", "8080"),
		LogLevel: getenvDefault("LOG_LEVEL", "info"),
		Storage: StorageConfig{
			Driver:             getenvDefault("STORAGE_DRIVER", DriverMemory),
			DatabaseURL:        os.Getenv("DATABASE_URL"),
			Pool:               postgres.DefaultPoolConfig(""),
			AuditCompressAbove: getenvIntDefault("AUDIT_COMPRESS_ABOVE", postgres.DefaultCompressThreshold),
			MigrateOnStart:     getenvBoolDefault("MIGRATE_ON_START", false),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			Issuer:    getenvDefault("JWT_ISSUER", "finbpo"),
		},
		Idempotency: IdempotencyConfig{
			Enabled: getenvBoolDefault("IDEMPOTENCY_ENABLED", false),
			TTL:     getenvDurationDefault("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Series: accounts.DefaultPolicy(),
	}

	if path := strings.TrimSpace(os.Getenv("FINBPO_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Storage.Pool.DSN = cfg.Storage.DatabaseURL

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.Env != "development" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.Idempotency.Enabled && c.Idempotency.TTL <= 0 {
		return fmt.Errorf("idempotency ttl must be positive, got %s", c.Idempotency.TTL)
	}
	if c.Storage.AuditCompressAbove < 0 {
		return fmt.Errorf("audit_compress_above must not be negative")
	}
	return c.Series.Validate()
}

func getenvDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBoolDefault(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
