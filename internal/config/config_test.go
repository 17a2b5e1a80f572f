package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "claude", cfg.Agent.Command)
	assert.Equal(t, "claude-sonnet-4-6", cfg.Agent.Model)
	assert.Equal(t, 25, cfg.Agent.MaxTurns)
	assert.Equal(t, 120*time.Second, cfg.GetAgentTimeout())
	assert.Equal(t, time.Duration(0), cfg.GetCommandTimeout())
	assert.ElementsMatch(t,
		[]string{"which", "type", "claude", "codex", "opencode", "gemini", "npm", "npx", "curl", "bash"},
		cfg.Sandbox.AllowedCommands)
	assert.Equal(t, []string{"~/.config/agent-runner/", "~/.local/bin/"}, cfg.Sandbox.AllowedWriteRoots)
	assert.Equal(t, "sqlite", cfg.Memory.Driver)
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("AGENT_RUNNER_MODEL", "")
	t.Setenv("AGENT_RUNNER_DB", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Agent.Model = "claude-opus-test"
	cfg.Sandbox.AllowedCommands = []string{"which"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-test", loaded.Agent.Model)
	assert.Equal(t, []string{"which"}, loaded.Sandbox.AllowedCommands)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Agent, cfg.Agent)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: [unterminated"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty model", func(c *Config) { c.Agent.Model = "" }, true},
		{"zero turns", func(c *Config) { c.Agent.MaxTurns = 0 }, true},
		{"no commands", func(c *Config) { c.Sandbox.AllowedCommands = nil }, true},
		{"command with path", func(c *Config) { c.Sandbox.AllowedCommands = []string{"/bin/rm"} }, true},
		{"unknown driver", func(c *Config) { c.Memory.Driver = "postgres" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad timeout", func(c *Config) { c.Agent.Timeout = "soon" }, true},
		{"tool without dir", func(c *Config) { c.Discovery.KnownTools = []ToolConfig{{Name: "claude"}} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/home/u", ExpandHome("~", "/home/u"))
	assert.Equal(t, "/home/u/.claude", ExpandHome("~/.claude", "/home/u"))
	assert.Equal(t, "/etc/passwd", ExpandHome("/etc/passwd", "/home/u"))
	assert.Equal(t, "~other/x", ExpandHome("~other/x", "/home/u"))
}
