// Package logging provides categorized structured logging for agent-runner.
// Every category is a named child of one zap logger. Until Initialize (or
// Replace) is called all loggers are no-ops, so library code and tests can log
// freely without any setup.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, config loading
	CategoryStore      Category = "store"      // Memory graph persistence
	CategoryAgent      Category = "agent"      // Reasoning step round-trips
	CategoryTactile    Category = "tactile"    // Sandboxed command execution, file writes
	CategorySetup      Category = "setup"      // Orchestrator turn loop
	CategoryDiscovery  Category = "discovery"  // Tool detection
	CategoryExtensions Category = "extensions" // Skill/MCP sync
	CategoryAudit      Category = "audit"      // Sandbox allow/block decisions
)

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports.
type Options struct {
	// Dir is where agent-runner.log is written. Empty means stderr.
	Dir        string
	Level      string
	JSONFormat bool
	// DebugMode false raises the floor to warn regardless of Level.
	DebugMode  bool
	Categories map[string]bool
}

// Logger is a category-bound sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*Logger)
)

// Initialize builds the process-wide zap logger from opts.
func Initialize(o Options) error {
	level := parseLevel(o.Level)
	if !o.DebugMode && level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Sampling = nil
	if !o.JSONFormat {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.OutputPaths = []string{"stderr"}

	if o.Dir != "" {
		if err := os.MkdirAll(o.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		zcfg.OutputPaths = []string{filepath.Join(o.Dir, "agent-runner.log")}
	}

	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	base = l
	opts = o
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	Get(CategoryBoot).Info("logging initialized: level=%s dir=%s", level, o.Dir)
	return nil
}

// Replace swaps the underlying zap logger with l, enabling every category,
// and returns a function restoring the previous state. Intended for the cmd
// layer (which builds its own zap logger) and for tests using zaptest/observer.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prevBase, prevOpts := base, opts
	base = l
	opts = Options{DebugMode: true}
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	return func() {
		mu.Lock()
		base, opts = prevBase, prevOpts
		loggers = make(map[Category]*Logger)
		mu.Unlock()
	}
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	_ = l.Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()

	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		sugar:    base.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Zap exposes the underlying zap logger for callers that want typed fields.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// =============================================================================
// Category helpers
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func Agent(format string, args ...interface{})      { Get(CategoryAgent).Info(format, args...) }
func AgentDebug(format string, args ...interface{}) { Get(CategoryAgent).Debug(format, args...) }
func AgentWarn(format string, args ...interface{})  { Get(CategoryAgent).Warn(format, args...) }

func Tactile(format string, args ...interface{})      { Get(CategoryTactile).Info(format, args...) }
func TactileDebug(format string, args ...interface{}) { Get(CategoryTactile).Debug(format, args...) }
func TactileWarn(format string, args ...interface{})  { Get(CategoryTactile).Warn(format, args...) }
func TactileError(format string, args ...interface{}) { Get(CategoryTactile).Error(format, args...) }

func Setup(format string, args ...interface{})      { Get(CategorySetup).Info(format, args...) }
func SetupDebug(format string, args ...interface{}) { Get(CategorySetup).Debug(format, args...) }
func SetupWarn(format string, args ...interface{})  { Get(CategorySetup).Warn(format, args...) }
func SetupError(format string, args ...interface{}) { Get(CategorySetup).Error(format, args...) }

func Discovery(format string, args ...interface{}) { Get(CategoryDiscovery).Info(format, args...) }
func DiscoveryDebug(format string, args ...interface{}) {
	Get(CategoryDiscovery).Debug(format, args...)
}

func Extensions(format string, args ...interface{}) { Get(CategoryExtensions).Info(format, args...) }
func ExtensionsWarn(format string, args ...interface{}) {
	Get(CategoryExtensions).Warn(format, args...)
}

// =============================================================================
// Timing
// =============================================================================

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer starts timing operation under category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level when elapsed exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s slow: %v (threshold %v)", t.operation, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	}
	return elapsed
}
