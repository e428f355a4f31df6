package config

import (
	"fmt"
	"strings"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/spf13/viper"
)

var _ domain.ConfigManager = (*Manager)(nil)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile creates a configuration manager that reads the given
// file instead of searching the default config paths.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(path); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig(path string) error {
	v := m.v
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/neuropharmdb/")
	}

	v.SetEnvPrefix("NEUROPHARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Shared with the lite binary and MCP client registrations
	_ = v.BindEnv("mcp.user_id", "NEUROPHARM_MCP_USER_ID", "NEUROPHARM_MCP_USER")

	m.setDefaults()

	// Config file is optional; defaults and env vars apply without one
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "neuropharmdb")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Cache defaults
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.unread_count_ttl", "5s")
	v.SetDefault("cache.resolver_size", 4096)
	v.SetDefault("cache.pool_size", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Engine defaults
	v.SetDefault("engine.alert_threshold", 7.0)
	v.SetDefault("engine.alert_list_limit", 20)

	// Predictor defaults
	v.SetDefault("predictor.url", "")
	v.SetDefault("predictor.timeout", "5s")
	v.SetDefault("predictor.rate_limit", 5.0)

	// Auth defaults
	v.SetDefault("auth.session_ttl", "12h")
	v.SetDefault("auth.max_sessions", 10000)

	// MCP defaults
	v.SetDefault("mcp.server_name", "neuropharmdb")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.user_id", "")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if config.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if !domain.ValidSeverity(config.Engine.AlertThreshold) {
		return fmt.Errorf("invalid alert threshold: %.2f", config.Engine.AlertThreshold)
	}
	if config.Engine.AlertListLimit <= 0 {
		return fmt.Errorf("invalid alert list limit: %d", config.Engine.AlertListLimit)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetMigrationURL returns the postgres URL form used by the migration runner
func (m *Manager) GetMigrationURL() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Server.Environment) == "production"
}
