package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerWithFile_MissingFile(t *testing.T) {
	m, err := NewManagerWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	// An explicitly named file that does not exist is a read error, not a
	// ConfigFileNotFoundError.
	require.Error(t, err)
	assert.Nil(t, m)
}

func TestNewManagerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  environment: production
database:
  host: db.internal
  database: neuro
  username: app
engine:
  alert_threshold: 6.5
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := NewManagerWithFile(path)
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "db.internal", m.GetDatabaseConfig().Host)
	assert.Equal(t, 6.5, cfg.Engine.AlertThreshold)
	assert.Equal(t, 20, cfg.Engine.AlertListLimit)
	assert.Equal(t, 5*time.Second, cfg.Cache.UnreadCountTTL)
	assert.True(t, m.IsProduction())
	assert.NoError(t, m.Validate())

	assert.Equal(t, "host=db.internal port=5432 user=app password= dbname=neuro sslmode=disable",
		m.GetDatabaseConnectionString())
	assert.Equal(t, "postgres://app:@db.internal:5432/neuro?sslmode=disable", m.GetMigrationURL())
}

func TestManager_Validate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600))

	tests := []struct {
		name   string
		mutate func(m *Manager)
	}{
		{"bad port", func(m *Manager) { m.config.Server.Port = 0 }},
		{"no db host", func(m *Manager) { m.config.Database.Host = "" }},
		{"no redis", func(m *Manager) { m.config.Cache.RedisURL = "" }},
		{"threshold out of range", func(m *Manager) { m.config.Engine.AlertThreshold = 10.5 }},
		{"bad list limit", func(m *Manager) { m.config.Engine.AlertListLimit = 0 }},
		{"bad log level", func(m *Manager) { m.config.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManagerWithFile(path)
			require.NoError(t, err)
			require.NoError(t, m.Validate())

			tt.mutate(m)
			assert.Error(t, m.Validate())
		})
	}
}
