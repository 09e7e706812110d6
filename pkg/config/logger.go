package config

import "fmt"

// LoggerConfig configures structured logging via log/slog.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-file, --log-format)
//  2. Environment variables (LOOM_LOG_LEVEL, LOOM_LOG_FILE, LOOM_LOG_FORMAT)
//  3. Defaults (info level, text format, stderr)
//
// The logger section of a config file is defaulted and validated with
// the rest of the config, but the CLI's logger setup does not read it.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// File is the log destination path. Empty means stderr.
	File string `yaml:"file,omitempty"`

	// Format is "text" or "json", matching slog's two built-in handlers.
	Format string `yaml:"format,omitempty"`
}

// SetDefaults fills zero-valued fields with sensible defaults.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// Validate checks the logger configuration.
func (c *LoggerConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Level != "" && !validLevels[c.Level] {
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	if c.Format != "" && c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid log format %q (valid: text, json)", c.Format)
	}
	return nil
}
