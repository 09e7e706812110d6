package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/loomhq/loom/pkg/llm"
	"github.com/loomhq/loom/pkg/registry"
)

// RegistryError wraps a registry operation failure with enough context
// to log or surface to the user without losing the underlying cause.
type RegistryError struct {
	Action  string
	Message string
	Err     error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tools: %s: %s: %v", e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("tools: %s: %s", e.Action, e.Message)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// Registry is the static catalog of dispatchable tools. Unlike the
// teacher's ToolRegistry, it has no notion of discoverable sources: the
// spec's tools (execution, filesystem, search, plan) are registered
// once at startup and never rediscovered.
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Tool]()}
}

// Register adds a tool under its own Info().Name.
func (r *Registry) Register(tool Tool) error {
	name := tool.Info().Name
	if name == "" {
		return &RegistryError{Action: "Register", Message: "tool name cannot be empty"}
	}
	return r.base.Register(name, tool)
}

// Get returns the named tool, or false if it is not registered.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.base.Get(name)
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	return r.base.Names()
}

// List returns catalog metadata for every registered tool, sorted by
// name, for display or inspection purposes.
func (r *Registry) List() []Info {
	tools := r.base.List()
	infos := make([]Info, len(tools))
	for i, t := range tools {
		infos[i] = t.Info()
	}
	return infos
}

// Catalog projects the registry into the llm.ToolDefinition list the
// provider's function-calling catalog needs.
func (r *Registry) Catalog() []llm.ToolDefinition {
	tools := r.base.List()
	defs := make([]llm.ToolDefinition, len(tools))
	for i, t := range tools {
		info := t.Info()
		params := make([]llm.ToolParameter, len(info.Parameters))
		for j, p := range info.Parameters {
			params[j] = llm.ToolParameter{
				Name:        p.Name,
				Kind:        p.Kind,
				Description: p.Description,
				Required:    p.Required,
				Enum:        p.Enum,
				Default:     p.Default,
			}
		}
		defs[i] = llm.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  params,
		}
	}
	return defs
}

// Execute runs the named tool and records its wall-clock duration into
// the returned Result, regardless of what the tool itself set.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (Result, error) {
	tool, ok := r.base.Get(name)
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown tool %q", name), ToolName: name},
			&RegistryError{Action: "Execute", Message: fmt.Sprintf("tool %q not found", name)}
	}

	start := time.Now()
	result, err := tool.Execute(ctx, params)
	result.ExecutionTime = time.Since(start)
	result.ToolName = name
	return result, err
}
