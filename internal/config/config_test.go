package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, "local", cfg.LockBackend)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "@every 1h", cfg.ReconciliationSchedule)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REPORT_EMAIL_TO", "dueño@almacen.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "dueño@almacen.test", cfg.ReportEmailTo)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"store desconocido":     {"STORE_BACKEND": "sqlite"},
		"lock desconocido":      {"LOCK_BACKEND": "etcd"},
		"lock redis sin redis":  {"LOCK_BACKEND": "redis"},
		"secreto corto en prod": {"APP_ENV": "production", "JWT_SECRET": "corto"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
