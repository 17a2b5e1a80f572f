// Command agentrunner detects, installs, configures and cross-syncs CLI
// coding agents, driven by a multi-turn setup agent.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentrunner/internal/config"
	"agentrunner/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentrunner",
	Short: "Set up and maintain CLI coding agents",
	Long: `agentrunner keeps a machine's CLI coding agents (claude, codex, opencode,
gemini) installed, authenticated and configured.

A setup session hands the detected system state to a reasoning agent, which
proposes actions: run an allowlisted command, write a config file under an
allowed directory, sync skills and MCP servers between tools, or ask you a
question. What it learns is kept in a small memory graph for next time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if timeout > 0 {
			cfg.Agent.Timeout = timeout.String()
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return initLogging(cfg)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func initLogging(c *config.Config) error {
	if verbose {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		l, err := zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		logging.Replace(l)
		return nil
	}

	if err := logging.Initialize(logging.Options{
		Dir:        config.LogsDir(),
		Level:      c.Logging.Level,
		JSONFormat: c.Logging.JSONFormat(),
		DebugMode:  c.Logging.DebugMode,
		Categories: c.Logging.Categories,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = logging.Get(logging.CategoryBoot).Zap()
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Reasoning step timeout (default from config)")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(setupCLICmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return home, nil
}
