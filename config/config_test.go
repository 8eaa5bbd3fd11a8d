package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "simulated", cfg.Workflow.InventorySource)
	assert.Equal(t, "memory", cfg.Workflow.SessionStore)
	assert.Equal(t, time.Second, cfg.Workflow.LookupLatency)
	assert.Equal(t, 2*time.Second, cfg.Workflow.PaymentLatency)
	assert.Equal(t, 0.30, cfg.Workflow.OccupancyRate)
	assert.Zero(t, cfg.Workflow.SearchCacheTTL)
	// 預設組態不需要外部服務
	assert.False(t, cfg.NeedsRedis())
	assert.False(t, cfg.NeedsDatabase())
	assert.Same(t, cfg, AppConfig)
}

func TestLoadConfig_SearchCacheNeedsRedis(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SEARCH_CACHE_TTL", "5m")

	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.SearchCacheTTL)
	assert.Equal(t, "memory", cfg.Workflow.SessionStore)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOOKUP_TIMEOUT", "250ms")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Workflow.LookupTimeout)
	assert.Equal(t, "redis", cfg.Workflow.SessionStore)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.NeedsRedis())
	assert.False(t, cfg.NeedsDatabase())
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	path := filepath.Join(t.TempDir(), "reservation.yaml")
	content := `
server:
  port: "9090"
workflow:
  inventory_source: postgres
  payment_timeout: 3s
  occupancy_rate: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Workflow.InventorySource)
	assert.Equal(t, 3*time.Second, cfg.Workflow.PaymentTimeout)
	assert.Equal(t, 0.5, cfg.Workflow.OccupancyRate)
	// 未覆蓋的欄位保留環境變數預設值
	assert.Equal(t, "memory", cfg.Workflow.SessionStore)
	assert.True(t, cfg.NeedsDatabase())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	t.Run("Unknown inventory source", func(t *testing.T) {
		t.Setenv("INVENTORY_SOURCE", "http")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("Occupancy rate out of range", func(t *testing.T) {
		t.Setenv("OCCUPANCY_RATE", "1.5")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadTestConfig(t *testing.T) {
	cfg := LoadTestConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "5433", cfg.Database.Port)
}
