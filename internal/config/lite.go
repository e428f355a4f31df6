// Package config provides configuration management for the interaction
// server. This file contains the lightweight configuration for standalone
// operation on an embedded SQLite database.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the database file

	// Cache settings
	CacheMaxItems  int           // Maximum items in memory caches
	UnreadCountTTL time.Duration // TTL of cached unread counts

	// Engine
	AlertThreshold float64

	// Predictor
	PredictorURL string // Optional remote model endpoint

	// MCP
	MCPUserID string // User the MCP tools act for

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".neuropharmdb")

	return &LiteConfig{
		DataDir:        dataDir,
		CacheMaxItems:  1000,
		UnreadCountTTL: 5 * time.Second,
		AlertThreshold: 7.0,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("NEUROPHARM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("NEUROPHARM_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("NEUROPHARM_UNREAD_COUNT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.UnreadCountTTL = d
		}
	}

	if v := os.Getenv("NEUROPHARM_ALERT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 10 {
			cfg.AlertThreshold = f
		}
	}

	cfg.PredictorURL = os.Getenv("NEUROPHARM_PREDICTOR_URL")
	cfg.MCPUserID = os.Getenv("NEUROPHARM_MCP_USER")

	if v := os.Getenv("NEUROPHARM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("NEUROPHARM_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// DBPath returns the path to the SQLite database.
func (c *LiteConfig) DBPath() string {
	return filepath.Join(c.DataDir, "neuropharmdb.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
