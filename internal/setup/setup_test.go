package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRegister_PreservesOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	existing := `{"theme":"dark","mcpServers":{"other":{"command":"/bin/other"}}}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0644))

	written, err := Register(Options{
		ConfigPath: path,
		BinaryPath: "/opt/neuropharmdb/mcp-server-lite",
		DataDir:    "/var/lib/neuropharmdb",
		UserID:     "U001",
	})
	require.NoError(t, err)
	assert.Equal(t, path, written)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, cfg.MCPServers, "other")
	entry := cfg.MCPServers[ServerName]
	assert.Equal(t, "/opt/neuropharmdb/mcp-server-lite", entry.Command)
	assert.Equal(t, "U001", entry.Env["NEUROPHARM_MCP_USER"])
	assert.Equal(t, "/var/lib/neuropharmdb", entry.Env["NEUROPHARM_DATA_DIR"])

	var raw map[string]json.RawMessage
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"dark"`, string(raw["theme"]))

	removed, err := Unregister(path)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = Unregister(path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegister_RequiresUser(t *testing.T) {
	_, err := Register(Options{ConfigPath: filepath.Join(t.TempDir(), "c.json"), BinaryPath: "/bin/true"})
	assert.Error(t, err)
}
