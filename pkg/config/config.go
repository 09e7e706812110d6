// Package config loads and validates the orchestrator's YAML
// configuration file, layering environment-variable expansion and
// optional hot-reload on top of a koanf-backed file provider
// (grounded on the teacher's pkg/config/koanf_loader.go, trimmed to
// the file-backend path — this spec has no consul/etcd/zookeeper
// concern, see DESIGN.md).
package config

import "fmt"

// Config is the root configuration document (spec.md §2, §6).
type Config struct {
	// Name labels this configuration for logging/display.
	Name string `yaml:"name,omitempty"`

	LLM          LLMConfig          `yaml:"llm,omitempty"`
	Logger       LoggerConfig       `yaml:"logger,omitempty"`
	Tools        ToolsConfig        `yaml:"tools,omitempty"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator,omitempty"`
}

// SetDefaults fills zero-valued fields across the whole document.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Logger.SetDefaults()
	c.Tools.SetDefaults()
	c.Orchestrator.SetDefaults()
}

// Validate checks the whole document after defaults have been applied.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// Default returns a Config with every section defaulted, for callers
// that run without a config file (e.g. `loom run --prompt ...` with
// no --config flag).
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}
