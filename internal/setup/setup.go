// Package setup registers the NeuroPharmDB MCP server with desktop MCP
// clients that read an "mcpServers" JSON configuration file.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerName is the key the server is registered under
const ServerName = "neuropharmdb"

// ClientConfig is the MCP client configuration file. Unknown top-level
// keys are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry launches one MCP server
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls registration
type Options struct {
	ConfigPath string // defaults to DefaultConfigPath
	BinaryPath string // defaults to a lookup of the server binary
	ServerType string // "lite" or "full"
	DataDir    string // lite mode database directory
	UserID     string // user the MCP tools act for
}

// DefaultConfigPath returns the platform location of the desktop client's config file
func DefaultConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// Load reads a client configuration. A missing file yields an empty config.
func Load(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]ServerEntry{}, extra: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerEntry{}
	}
	return cfg, nil
}

// Save writes the configuration, creating its directory
func Save(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry and returns the file written
func Register(opts Options) (string, error) {
	if opts.UserID == "" {
		return "", fmt.Errorf("a user id is required for the MCP tools")
	}

	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", err
		}
	}

	binary := opts.BinaryPath
	if binary == "" {
		var err error
		if binary, err = findBinary(opts.ServerType); err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
	}

	cfg, err := Load(path)
	if err != nil {
		return "", err
	}

	entry := ServerEntry{
		Command: binary,
		Env:     map[string]string{"NEUROPHARM_MCP_USER": opts.UserID},
	}
	if opts.DataDir != "" {
		entry.Env["NEUROPHARM_DATA_DIR"] = opts.DataDir
	}
	cfg.MCPServers[ServerName] = entry

	if err := Save(path, cfg); err != nil {
		return "", err
	}
	return path, nil
}

// Unregister removes the server entry. It reports whether one was present.
func Unregister(path string) (bool, error) {
	cfg, err := Load(path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, Save(path, cfg)
}

// findBinary looks for the server binary on PATH and in common locations
func findBinary(serverType string) (string, error) {
	binaryName := "mcp-server-lite"
	if serverType == "full" {
		binaryName = "mcp-server"
	}

	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + binaryName,
		"./build/" + binaryName,
		filepath.Join(home, ".local", "bin", binaryName),
		"/usr/local/bin/" + binaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", binaryName)
}
