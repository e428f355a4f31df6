package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Auth      AuthConfig      `mapstructure:"auth"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per session
	RateBurst      int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL       string        `mapstructure:"redis_url"`
	UnreadCountTTL time.Duration `mapstructure:"unread_count_ttl"`
	ResolverSize   int           `mapstructure:"resolver_size"`
	PoolSize       int           `mapstructure:"pool_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig configures alert evaluation
type EngineConfig struct {
	AlertThreshold float64 `mapstructure:"alert_threshold"`
	AlertListLimit int     `mapstructure:"alert_list_limit"`
}

// PredictorConfig configures the interaction predictor. An empty URL
// selects the local heuristic.
type PredictorConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
}

// AuthConfig configures session tokens
type AuthConfig struct {
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
	UserID        string `mapstructure:"user_id"`
}
