// Package llm defines the streaming chat transport contract the
// orchestrator depends on, plus the Ollama-format adapter that
// satisfies it (§6 EXTERNAL INTERFACES / §4.3 of the spec).
package llm

import (
	"context"

	"github.com/loomhq/loom/pkg/convo"
)

// ToolParameter describes one parameter of a tool's schema, mirroring
// the JSON-Schema subset the function-calling catalog needs.
type ToolParameter struct {
	Name        string
	Kind        string // "string", "number", "boolean", "array", "object"
	Description string
	Required    bool
	Enum        []string
	Default     any
}

// ToolDefinition is the catalog entry a Provider converts into its
// wire-specific function-calling schema.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ChunkType discriminates a StreamChunk's payload.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkThinking ChunkType = "thinking"
	ChunkToolCall ChunkType = "tool_call"
	ChunkDone     ChunkType = "done"
	ChunkError    ChunkType = "error"
)

// StreamChunk is one unit emitted on a Provider's streaming channel.
type StreamChunk struct {
	Type     ChunkType
	Text     string // set for ChunkText / ChunkThinking
	ToolCall *convo.ToolCall // set for ChunkToolCall; native, not synthetic
	Tokens   int             // set for ChunkDone
	Err      error           // set for ChunkError
}

// StructuredOutput asks the provider to constrain generation to a JSON
// schema (or plain "json" mode if Schema is nil).
type StructuredOutput struct {
	Schema map[string]any
}

// Provider is the streaming chat transport contract the core turn loop
// depends on. It makes no assumption about framing (SSE, NDJSON,
// WebSocket) beyond "a channel of chunks, closed on completion".
type Provider interface {
	// GenerateStreaming starts a chat completion for the given history
	// and tool catalog. The returned channel is closed when the stream
	// ends; the last chunk is normally ChunkDone or ChunkError, but the
	// channel may also close without either if the response body ends
	// before a done chunk arrives.
	GenerateStreaming(ctx context.Context, messages []convo.Message, tools []ToolDefinition) (<-chan StreamChunk, error)

	// GenerateStructuredStreaming is like GenerateStreaming but
	// constrains the model's output to the given structured format.
	// The turn loop does not call it.
	GenerateStructuredStreaming(ctx context.Context, messages []convo.Message, tools []ToolDefinition, format *StructuredOutput) (<-chan StreamChunk, error)

	// ModelName returns the model identifier this provider targets.
	ModelName() string
}
