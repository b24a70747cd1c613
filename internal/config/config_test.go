package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "APP_PORT", "LOG_LEVEL", "STORAGE_DRIVER", "DATABASE_URL",
		"JWT_SECRET", "JWT_ISSUER", "IDEMPOTENCY_ENABLED", "IDEMPOTENCY_TTL",
		"AUDIT_COMPRESS_ABOVE", "MIGRATE_ON_START", "FINBPO_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.Development())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.False(t, cfg.Idempotency.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 12, cfg.Series.Horizons.Monthly)
	assert.Equal(t, 30, cfg.Series.CloneOffsetDays)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/finbpo")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("IDEMPOTENCY_ENABLED", "true")
	t.Setenv("IDEMPOTENCY_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Development())
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/finbpo", cfg.Storage.Pool.DSN)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Idempotency.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Idempotency.TTL)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://db/finbpo")

	path := filepath.Join(t.TempDir(), "finbpo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
storage:
  driver: postgres
  pool:
    max_conns: 5
    max_conn_lifetime: 10m
series:
  horizons:
    monthly: 24
  clone_offset_days: 14
`), 0o600))
	t.Setenv("FINBPO_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, int32(5), cfg.Storage.Pool.MaxConns)
	assert.Equal(t, int32(2), cfg.Storage.Pool.MinConns, "unset keys keep their defaults")
	assert.Equal(t, 10*time.Minute, cfg.Storage.Pool.MaxConnLifetime)
	assert.Equal(t, "postgres://db/finbpo", cfg.Storage.Pool.DSN)
	assert.Equal(t, 24, cfg.Series.Horizons.Monthly)
	assert.Equal(t, 52, cfg.Series.Horizons.Weekly)
	assert.Equal(t, 14, cfg.Series.CloneOffsetDays)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{name: "postgres without dsn", env: map[string]string{"STORAGE_DRIVER": "postgres"}},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "production without secret", env: map[string]string{"APP_ENV": "production"}},
		{name: "horizon above max", yaml: "series:\n  max_horizon: 10\n  horizons:\n    weekly: 52\n"},
		{name: "installments unbounded", yaml: "series:\n  max_installments: 100000\n"},
		{name: "malformed yaml", yaml: "series: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.yaml != "" {
				path := filepath.Join(t.TempDir(), "cfg.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
				t.Setenv("FINBPO_CONFIG", path)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("FINBPO_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.ErrorContains(t, err, "read config")
}
