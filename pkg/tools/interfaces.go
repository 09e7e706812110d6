// Package tools defines the tool contract (registry, catalog adapter,
// result formatter) plus the concrete execution/filesystem/search/plan
// tools the orchestrator dispatches to.
package tools

import (
	"context"
	"time"
)

// Parameter describes one parameter of a tool's schema.
type Parameter struct {
	Name        string
	Kind        string // "string", "number", "boolean", "array", "object"
	Description string
	Required    bool
	Enum        []string
	Default     any
}

// Info is a tool's catalog metadata.
type Info struct {
	Name          string
	Description   string
	Category      string
	Parameters    []Parameter
	DisplayOutput string // hint: "text", "diff", "json", ...
}

// Result is a tool execution's discriminated outcome.
type Result struct {
	Success       bool
	Data          any
	Error         string
	ToolName      string
	ExecutionTime time.Duration
	Metadata      map[string]any
}

// Tool is the contract every dispatchable tool satisfies: it validates
// its own parameters and returns a Result. A failed call returns a
// Result with Success false and Error set; the built-in tools also
// return the same failure as a non-nil error.
type Tool interface {
	Info() Info
	Execute(ctx context.Context, params map[string]any) (Result, error)
}

// StreamingTool is implemented by tools that can emit incremental
// output chunks (e.g. the execution tool's live stdout/stderr) while
// still running.
type StreamingTool interface {
	Tool
	ExecuteStreaming(ctx context.Context, params map[string]any, chunks chan<- string) (Result, error)
}
