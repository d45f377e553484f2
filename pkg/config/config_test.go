package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("BILLING_MERCADOPAGO_ACCESS_TOKEN", "APP_USR-123")
	t.Setenv("BILLING_WORKER_BATCH_SIZE", "50")

	cfg := FromEnv("billing")

	assert.Equal(t, "APP_USR-123", cfg.GetString("mercadopago.access_token"))
	assert.Equal(t, 50, cfg.GetInt("worker.batch_size"))
	assert.True(t, cfg.IsSet("mercadopago.access_token"))
	assert.False(t, cfg.IsSet("pagseguro.token"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "billing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis:\n  addr: localhost:6379\n  db: 2\n"), 0o600))

	t.Setenv("BILLING_REDIS_ADDR", "redis:6380")

	cfg, err := Load("billing", path)
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", cfg.GetString("redis.addr"))
	assert.Equal(t, 2, cfg.GetInt("redis.db"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("billing", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
