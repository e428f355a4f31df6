package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 5*time.Second, cfg.UnreadCountTTL)
	assert.Equal(t, 7.0, cfg.AlertThreshold)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Empty(t, cfg.PredictorURL)
	assert.Empty(t, cfg.MCPUserID)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("NEUROPHARM_DATA_DIR", "/tmp/test-neuropharm")
	t.Setenv("NEUROPHARM_CACHE_MAX_ITEMS", "500")
	t.Setenv("NEUROPHARM_UNREAD_COUNT_TTL", "2s")
	t.Setenv("NEUROPHARM_ALERT_THRESHOLD", "6.5")
	t.Setenv("NEUROPHARM_PREDICTOR_URL", "http://model.local/predict")
	t.Setenv("NEUROPHARM_MCP_USER", "U001")
	t.Setenv("NEUROPHARM_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-neuropharm", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 2*time.Second, cfg.UnreadCountTTL)
	assert.Equal(t, 6.5, cfg.AlertThreshold)
	assert.Equal(t, "http://model.local/predict", cfg.PredictorURL)
	assert.Equal(t, "U001", cfg.MCPUserID)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_InvalidValuesIgnored(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("NEUROPHARM_CACHE_MAX_ITEMS", "-1")
	t.Setenv("NEUROPHARM_ALERT_THRESHOLD", "12")
	t.Setenv("NEUROPHARM_UNREAD_COUNT_TTL", "soon")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 7.0, cfg.AlertThreshold)
	assert.Equal(t, 5*time.Second, cfg.UnreadCountTTL)
}

func TestLiteConfig_DBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.neuropharmdb"}

	assert.Equal(t, "/home/user/.neuropharmdb/neuropharmdb.db", cfg.DBPath())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "neuropharm")}

	err := cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"NEUROPHARM_DATA_DIR",
		"NEUROPHARM_CACHE_MAX_ITEMS",
		"NEUROPHARM_UNREAD_COUNT_TTL",
		"NEUROPHARM_ALERT_THRESHOLD",
		"NEUROPHARM_PREDICTOR_URL",
		"NEUROPHARM_MCP_USER",
		"NEUROPHARM_LOG_LEVEL",
		"NEUROPHARM_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
