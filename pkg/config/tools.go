package config

import (
	"fmt"
	"time"

	"github.com/loomhq/loom/pkg/tools"
)

// ToolsConfig groups the per-tool settings for every built-in tool the
// dispatcher can register (spec.md §4.3 Tool Registry).
type ToolsConfig struct {
	Execution  ExecutionToolConfig  `yaml:"execution,omitempty"`
	Filesystem FilesystemToolConfig `yaml:"filesystem,omitempty"`
	Search     SearchToolConfig     `yaml:"search,omitempty"`
	Analysis   AnalysisToolConfig   `yaml:"analysis,omitempty"`
}

// SetDefaults fills zero-valued fields across every tool sub-config.
func (c *ToolsConfig) SetDefaults() {
	c.Execution.SetDefaults()
	c.Filesystem.SetDefaults()
	c.Search.SetDefaults()
	c.Analysis.SetDefaults()
}

// Validate checks every tool sub-config.
func (c *ToolsConfig) Validate() error {
	if err := c.Execution.Validate(); err != nil {
		return fmt.Errorf("execution tool: %w", err)
	}
	if err := c.Filesystem.Validate(); err != nil {
		return fmt.Errorf("filesystem tool: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search tool: %w", err)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis tool: %w", err)
	}
	return nil
}

// ExecutionToolConfig is the file-config shape for tools.ExecutionConfig.
// Durations are strings in the config file (e.g. "30s") so they read
// naturally in YAML; Build parses them into the runtime struct.
type ExecutionToolConfig struct {
	ProjectRoot     string   `yaml:"project_root,omitempty"`
	DefaultTimeout  string   `yaml:"default_timeout,omitempty"`
	AllowedCommands []string `yaml:"allowed_commands,omitempty"`
}

func (c *ExecutionToolConfig) SetDefaults() {
	if c.ProjectRoot == "" {
		c.ProjectRoot = "."
	}
	if c.DefaultTimeout == "" {
		c.DefaultTimeout = "30s"
	}
}

func (c *ExecutionToolConfig) Validate() error {
	if _, err := time.ParseDuration(c.DefaultTimeout); err != nil {
		return fmt.Errorf("invalid default_timeout %q: %w", c.DefaultTimeout, err)
	}
	return nil
}

// Build converts the file config into the runtime tools.ExecutionConfig.
func (c *ExecutionToolConfig) Build() (tools.ExecutionConfig, error) {
	timeout, err := time.ParseDuration(c.DefaultTimeout)
	if err != nil {
		return tools.ExecutionConfig{}, fmt.Errorf("invalid default_timeout %q: %w", c.DefaultTimeout, err)
	}
	return tools.ExecutionConfig{
		ProjectRoot:     c.ProjectRoot,
		DefaultTimeout:  timeout,
		AllowedCommands: c.AllowedCommands,
	}, nil
}

// FilesystemToolConfig is the file-config shape for tools.FilesystemConfig.
type FilesystemToolConfig struct {
	WorkingDirectory  string   `yaml:"working_directory,omitempty"`
	MaxFileSizeBytes  int      `yaml:"max_file_size_bytes,omitempty"`
	AllowedExtensions []string `yaml:"allowed_extensions,omitempty"`
	DeniedExtensions  []string `yaml:"denied_extensions,omitempty"`
	BackupOnOverwrite bool     `yaml:"backup_on_overwrite,omitempty"`
}

func (c *FilesystemToolConfig) SetDefaults() {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.MaxFileSizeBytes == 0 {
		c.MaxFileSizeBytes = 1 << 20
	}
}

func (c *FilesystemToolConfig) Validate() error {
	if c.MaxFileSizeBytes < 0 {
		return fmt.Errorf("max_file_size_bytes must be >= 0")
	}
	return nil
}

func (c *FilesystemToolConfig) Build() tools.FilesystemConfig {
	return tools.FilesystemConfig{
		WorkingDirectory:  c.WorkingDirectory,
		MaxFileSize:       c.MaxFileSizeBytes,
		AllowedExtensions: c.AllowedExtensions,
		DeniedExtensions:  c.DeniedExtensions,
		BackupOnOverwrite: c.BackupOnOverwrite,
	}
}

// SearchToolConfig is the file-config shape for tools.SearchConfig.
type SearchToolConfig struct {
	WorkingDirectory string `yaml:"working_directory,omitempty"`
	MaxFileSizeBytes int    `yaml:"max_file_size_bytes,omitempty"`
	MaxResults       int    `yaml:"max_results,omitempty"`
	ContextLines     int    `yaml:"context_lines,omitempty"`
}

func (c *SearchToolConfig) SetDefaults() {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.MaxFileSizeBytes == 0 {
		c.MaxFileSizeBytes = 10 << 20
	}
	if c.MaxResults == 0 {
		c.MaxResults = 1000
	}
}

func (c *SearchToolConfig) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must be >= 0")
	}
	return nil
}

func (c *SearchToolConfig) Build() tools.SearchConfig {
	return tools.SearchConfig{
		WorkingDirectory: c.WorkingDirectory,
		MaxFileSize:      c.MaxFileSizeBytes,
		MaxResults:       c.MaxResults,
		ContextLines:     c.ContextLines,
	}
}

// AnalysisToolConfig is the file-config shape for tools.AnalysisConfig.
type AnalysisToolConfig struct {
	WorkingDirectory string `yaml:"working_directory,omitempty"`
	MaxFileSizeBytes int    `yaml:"max_file_size_bytes,omitempty"`
}

func (c *AnalysisToolConfig) SetDefaults() {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.MaxFileSizeBytes == 0 {
		c.MaxFileSizeBytes = 2 << 20
	}
}

func (c *AnalysisToolConfig) Validate() error {
	if c.MaxFileSizeBytes < 0 {
		return fmt.Errorf("max_file_size_bytes must be >= 0")
	}
	return nil
}

func (c *AnalysisToolConfig) Build() tools.AnalysisConfig {
	return tools.AnalysisConfig{
		WorkingDirectory: c.WorkingDirectory,
		MaxFileSize:      c.MaxFileSizeBytes,
	}
}
