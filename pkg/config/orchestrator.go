package config

import (
	"fmt"
	"time"
)

// OrchestratorConfig carries every turn-loop and dispatcher tunable from
// spec.md §4.1/§4.4. pkg/orchestrator consumes this struct directly
// rather than redeclaring its own copy.
type OrchestratorConfig struct {
	// EnableToolCalling short-circuits the turn loop to a plain chat
	// turn ({turnComplete:true}) when false. SetDefaults always sets it
	// to true, so a false value read from a config file does not survive
	// loading; it stays false only in a struct SetDefaults is not run on.
	EnableToolCalling bool `yaml:"enable_tool_calling"`

	// MaxToolsPerRequest is the hard cap on dispatched tool calls across
	// the whole conversation for one prompt.
	MaxToolsPerRequest int `yaml:"max_tools_per_request,omitempty"`

	// ToolTimeout is the per-tool wall-clock limit, as a duration string
	// (e.g. "60s").
	ToolTimeout string `yaml:"tool_timeout,omitempty"`

	// RequireApprovalForCategories lists tool categories that must pass
	// through the approval cache/collaborator before dispatch.
	RequireApprovalForCategories []string `yaml:"require_approval_for_categories,omitempty"`

	// AutoApproveCategories seeds the approval cache's per-category tier
	// at startup (mirrors --auto-approve <category> CLI flags).
	AutoApproveCategories []string `yaml:"auto_approve_categories,omitempty"`

	// SkipUnapprovedTools, when true, makes an undecided approval
	// outcome fail silently as "skipped" instead of prompting.
	SkipUnapprovedTools bool `yaml:"skip_unapproved_tools,omitempty"`

	// RequirePlanApproval gates planning.execute on an explicit
	// plan-approval interaction.
	RequirePlanApproval bool `yaml:"require_plan_approval,omitempty"`

	// MaxConversationTurns bounds the outer turn loop.
	MaxConversationTurns int `yaml:"max_conversation_turns,omitempty"`

	// MaxConsecutiveFailures is the failure circuit breaker threshold.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures,omitempty"`

	// MaxConsecutiveTurnsWithOnlyToolCalls forces a textual answer once
	// reached.
	MaxConsecutiveTurnsWithOnlyToolCalls int `yaml:"max_consecutive_turns_with_only_tool_calls,omitempty"`

	// MaxConsecutiveDuplicates triggers a corrective system message.
	MaxConsecutiveDuplicates int `yaml:"max_consecutive_duplicates,omitempty"`

	// MaxSuccessfulDuplicates blocks a signature and forces an answer.
	MaxSuccessfulDuplicates int `yaml:"max_successful_duplicates,omitempty"`

	// ModelResponseAfterToolsTimeout forces turn completion if the model
	// produces neither text nor tool calls after tool execution, as a
	// duration string (e.g. "30s").
	ModelResponseAfterToolsTimeout string `yaml:"model_response_after_tools_timeout,omitempty"`
}

// SetDefaults fills zero-valued fields with the constants named in
// spec.md §4.1.
func (c *OrchestratorConfig) SetDefaults() {
	c.EnableToolCalling = true
	if c.MaxToolsPerRequest == 0 {
		c.MaxToolsPerRequest = 20
	}
	if c.ToolTimeout == "" {
		c.ToolTimeout = "60s"
	}
	if c.MaxConversationTurns == 0 {
		c.MaxConversationTurns = 20
	}
	if c.MaxConsecutiveFailures == 0 {
		c.MaxConsecutiveFailures = 3
	}
	if c.MaxConsecutiveTurnsWithOnlyToolCalls == 0 {
		c.MaxConsecutiveTurnsWithOnlyToolCalls = 2
	}
	if c.MaxConsecutiveDuplicates == 0 {
		c.MaxConsecutiveDuplicates = 3
	}
	if c.MaxSuccessfulDuplicates == 0 {
		c.MaxSuccessfulDuplicates = 3
	}
	if c.ModelResponseAfterToolsTimeout == "" {
		c.ModelResponseAfterToolsTimeout = "30s"
	}
}

// Validate checks the orchestrator configuration.
func (c *OrchestratorConfig) Validate() error {
	if _, err := time.ParseDuration(c.ToolTimeout); err != nil {
		return fmt.Errorf("invalid tool_timeout %q: %w", c.ToolTimeout, err)
	}
	if _, err := time.ParseDuration(c.ModelResponseAfterToolsTimeout); err != nil {
		return fmt.Errorf("invalid model_response_after_tools_timeout %q: %w", c.ModelResponseAfterToolsTimeout, err)
	}
	if c.MaxToolsPerRequest < 0 {
		return fmt.Errorf("max_tools_per_request must be >= 0")
	}
	if c.MaxConversationTurns < 1 {
		return fmt.Errorf("max_conversation_turns must be >= 1")
	}
	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("max_consecutive_failures must be >= 1")
	}
	return nil
}

// ToolTimeoutDuration parses ToolTimeout, assuming Validate has already
// confirmed it parses.
func (c *OrchestratorConfig) ToolTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ToolTimeout)
	return d
}

// ModelResponseAfterToolsTimeoutDuration parses
// ModelResponseAfterToolsTimeout, assuming Validate has already
// confirmed it parses.
func (c *OrchestratorConfig) ModelResponseAfterToolsTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ModelResponseAfterToolsTimeout)
	return d
}
