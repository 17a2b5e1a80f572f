package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string          `yaml:"format" validate:"omitempty,oneof=json text"`
	DebugMode  bool            `yaml:"debug_mode"` // false = warn and above only
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// JSONFormat reports whether log lines are JSON encoded.
func (c *LoggingConfig) JSONFormat() bool {
	return c.Format == "json"
}
