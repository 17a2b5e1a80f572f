package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppDirName is the directory under ~/.config that holds agent-runner state.
const AppDirName = "agent-runner"

// Config holds all agent-runner configuration.
type Config struct {
	// Reasoning step invocation
	Agent AgentConfig `yaml:"agent"`

	// Action sandbox allowlists
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Memory graph storage
	Memory MemoryConfig `yaml:"memory"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Tool detection
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// AgentConfig configures the external reasoning step.
type AgentConfig struct {
	Command      string   `yaml:"command" validate:"required"`
	Model        string   `yaml:"model" validate:"required"`
	AllowedTools []string `yaml:"allowed_tools" validate:"min=1,dive,required"`
	Timeout      string   `yaml:"timeout" validate:"required"`
	MaxTurns     int      `yaml:"max_turns" validate:"min=1,max=100"`
}

// SandboxConfig configures what actions may touch. Read once when the
// sandbox is constructed; nothing at runtime mutates it.
type SandboxConfig struct {
	AllowedCommands   []string `yaml:"allowed_commands" validate:"min=1,dive,required,excludesall=/\\"`
	AllowedWriteRoots []string `yaml:"allowed_write_roots" validate:"min=1,dive,required"`
	// CommandTimeout bounds run_command/test_integration. "0" disables it.
	CommandTimeout string `yaml:"command_timeout"`
	MaxOutputBytes int64  `yaml:"max_output_bytes" validate:"min=1024"`
}

// MemoryConfig configures the memory graph database.
type MemoryConfig struct {
	DatabasePath string `yaml:"database_path" validate:"required"`
	// Driver is "sqlite" (modernc, pure Go) or "sqlite3" (mattn, cgo builds only).
	Driver string `yaml:"driver" validate:"oneof=sqlite sqlite3"`
}

// DiscoveryConfig configures tool detection.
type DiscoveryConfig struct {
	KnownTools     []ToolConfig `yaml:"known_tools" validate:"min=1,dive"`
	VersionTimeout string       `yaml:"version_timeout"`
	WrapperDir     string       `yaml:"wrapper_dir"`
}

// ToolConfig names a known CLI tool and its config directory.
type ToolConfig struct {
	Name      string `yaml:"name" validate:"required"`
	ConfigDir string `yaml:"config_dir" validate:"required"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Command:      "claude",
			Model:        "claude-sonnet-4-6",
			AllowedTools: []string{"Read", "Bash", "Glob", "Grep"},
			Timeout:      "120s",
			MaxTurns:     25,
		},

		Sandbox: SandboxConfig{
			AllowedCommands: []string{
				"which", "type", "claude", "codex", "opencode", "gemini",
				"npm", "npx", "curl", "bash",
			},
			AllowedWriteRoots: []string{
				"~/.config/" + AppDirName + "/",
				"~/.local/bin/",
			},
			CommandTimeout: "0",
			MaxOutputBytes: 1024 * 1024,
		},

		Memory: MemoryConfig{
			DatabasePath: filepath.Join("~", ".config", AppDirName, "memory.db"),
			Driver:       "sqlite",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},

		Discovery: DiscoveryConfig{
			KnownTools: []ToolConfig{
				{Name: "claude", ConfigDir: "~/.claude"},
				{Name: "codex", ConfigDir: "~/.codex"},
				{Name: "opencode", ConfigDir: "~/.opencode"},
				{Name: "gemini", ConfigDir: "~/.gemini"},
			},
			VersionTimeout: "5s",
			WrapperDir:     "~/.local/bin",
		},
	}
}

// DefaultConfigDir returns ~/.config/agent-runner.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", AppDirName)
	}
	return filepath.Join(home, ".config", AppDirName)
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LogsDir returns the directory log files are written to.
func LogsDir() string {
	return filepath.Join(DefaultConfigDir(), "logs")
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("AGENT_RUNNER_DB"); path != "" {
		c.Memory.DatabasePath = path
	}
	if driver := os.Getenv("AGENT_RUNNER_DB_DRIVER"); driver != "" {
		c.Memory.Driver = driver
	}
	if model := os.Getenv("AGENT_RUNNER_MODEL"); model != "" {
		c.Agent.Model = model
	}
	if level := os.Getenv("AGENT_RUNNER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	switch strings.ToLower(os.Getenv("AGENT_RUNNER_DEBUG")) {
	case "1", "true", "yes":
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// GetAgentTimeout returns the reasoning step timeout as a duration.
func (c *Config) GetAgentTimeout() time.Duration {
	d, err := time.ParseDuration(c.Agent.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// GetCommandTimeout returns the sandbox command timeout. Zero means none.
func (c *Config) GetCommandTimeout() time.Duration {
	d, err := time.ParseDuration(c.Sandbox.CommandTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetVersionTimeout returns the timeout for `<tool> --version` probes.
func (c *Config) GetVersionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Discovery.VersionTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	for name, raw := range map[string]string{
		"agent.timeout":             c.Agent.Timeout,
		"sandbox.command_timeout":   c.Sandbox.CommandTimeout,
		"discovery.version_timeout": c.Discovery.VersionTimeout,
	} {
		if raw == "" || raw == "0" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}

	return nil
}

// ExpandHome replaces a leading "~" or "~/" with home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// ResolvedDatabasePath returns the database path with "~" expanded.
func (c *Config) ResolvedDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return c.Memory.DatabasePath
	}
	return ExpandHome(c.Memory.DatabasePath, home)
}
