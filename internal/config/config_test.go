package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg := LoadServer()

	assert.Equal(t, "inventory", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "mysql", cfg.StoreDriver)
	assert.Equal(t, 3, cfg.LockRetries)
	assert.Equal(t, 30*24*time.Hour, cfg.EventRetention)
}

func TestLoadServer_Env(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOCK_RETRIES", "7")
	t.Setenv("RECONCILE_INTERVAL", "30s")
	t.Setenv("STORES", "s1 s2")

	cfg := LoadServer()

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 7, cfg.LockRetries)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, []string{"s1", "s2"}, cfg.Stores)
}

func TestLoadAgent_Env(t *testing.T) {
	t.Setenv("STORE_ID", "store-9")
	t.Setenv("DEVICE_ID", "till-2")
	t.Setenv("FLUSH_INTERVAL", "2s")

	cfg := LoadAgent()

	assert.Equal(t, "store-9", cfg.StoreID)
	assert.Equal(t, "till-2", cfg.DeviceID)
	assert.Equal(t, 2*time.Second, cfg.FlushInterval)
	assert.Equal(t, "outbox.db", cfg.OutboxPath)
	assert.Equal(t, "127.0.0.1:8090", cfg.LocalAddr)
}
