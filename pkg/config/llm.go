package config

import (
	"fmt"
	"time"
)

// LLMConfig configures the streaming Ollama-format chat endpoint (spec.md §2).
type LLMConfig struct {
	// Host is the Ollama server base URL, e.g. http://localhost:11434.
	Host string `yaml:"host,omitempty"`

	// Model is the model name passed in each chat request.
	Model string `yaml:"model,omitempty"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature,omitempty"`

	// MaxTokens caps the response length (num_predict). 0 means provider default.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Think forces the "think" request field; nil leaves the
	// model-name heuristic in pkg/llm in control.
	Think *bool `yaml:"think,omitempty"`

	// RequestTimeout is defaulted but not applied: every chat request
	// streams, and streaming requests have no client-wide timeout (see
	// internal/httpclient).
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// MaxRetries is the retrying HTTP client's retry budget.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// SetDefaults fills zero-valued fields with sensible defaults.
func (c *LLMConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "qwen2.5:7b"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("llm model must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm temperature %v out of range [0, 2]", c.Temperature)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must be >= 0")
	}
	return nil
}
