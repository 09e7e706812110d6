package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/convo"
	"github.com/loomhq/loom/pkg/llm"
	"github.com/loomhq/loom/pkg/tools"
)

// fakeProvider replays a fixed script of StreamChunk batches, one
// batch per call to GenerateStreaming, for deterministic turn-loop
// tests.
type fakeProvider struct {
	batches [][]llm.StreamChunk
	call    int
}

func (f *fakeProvider) GenerateStreaming(ctx context.Context, messages []convo.Message, toolDefs []llm.ToolDefinition) (<-chan llm.StreamChunk, error) {
	var batch []llm.StreamChunk
	if f.call < len(f.batches) {
		batch = f.batches[f.call]
	}
	f.call++

	ch := make(chan llm.StreamChunk, len(batch))
	for _, c := range batch {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) GenerateStructuredStreaming(ctx context.Context, messages []convo.Message, toolDefs []llm.ToolDefinition, format *llm.StructuredOutput) (<-chan llm.StreamChunk, error) {
	return f.GenerateStreaming(ctx, messages, toolDefs)
}

func (f *fakeProvider) ModelName() string { return "fake-model" }

func newTestOrchestrator(t *testing.T, provider llm.Provider, reg *tools.Registry, cfg config.OrchestratorConfig) *Orchestrator {
	t.Helper()
	cfg.SetDefaults()
	state := NewOrchestratorState()
	dispatcher := NewDispatcher(reg, state, &fakeCollaborator{approved: true}, cfg, nil)
	return New(provider, reg, dispatcher, state, cfg)
}

func textChunk(s string) llm.StreamChunk { return llm.StreamChunk{Type: llm.ChunkText, Text: s} }
func doneChunk() llm.StreamChunk         { return llm.StreamChunk{Type: llm.ChunkDone} }

func TestRunPlainChatTurnCompletesWithoutToolCalls(t *testing.T) {
	provider := &fakeProvider{batches: [][]llm.StreamChunk{
		{textChunk("Hello! How can I help you today?"), doneChunk()},
	}}
	reg := tools.NewRegistry()
	o := newTestOrchestrator(t, provider, reg, config.OrchestratorConfig{})

	history := convo.NewHistory()
	history.Append(convo.NewUserMessage("hi"))

	result, err := o.Run(context.Background(), history)
	require.NoError(t, err)
	assert.True(t, result.TurnComplete)
	assert.False(t, result.SessionShouldEnd)
}

func TestRunDisabledToolCallingReturnsImmediately(t *testing.T) {
	provider := &fakeProvider{}
	reg := tools.NewRegistry()
	cfg := config.OrchestratorConfig{EnableToolCalling: false}
	state := NewOrchestratorState()
	dispatcher := NewDispatcher(reg, state, &fakeCollaborator{}, cfg, nil)
	o := New(provider, reg, dispatcher, state, cfg)

	result, err := o.Run(context.Background(), convo.NewHistory())
	require.NoError(t, err)
	assert.True(t, result.TurnComplete)
	assert.Equal(t, 0, provider.call)
}

func TestRunNativeToolCallThenTextCompletes(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search",
		execute: func(ctx context.Context, params map[string]any) (tools.Result, error) {
			return tools.Result{Success: true, Data: "3 matches found"}, nil
		},
	}))

	provider := &fakeProvider{batches: [][]llm.StreamChunk{
		{
			{Type: llm.ChunkToolCall, ToolCall: &convo.ToolCall{Name: "search", Parameters: map[string]any{"pattern": "TODO"}}},
			doneChunk(),
		},
		{
			textChunk("I found three matches for TODO across the repository."),
			doneChunk(),
		},
	}}
	o := newTestOrchestrator(t, provider, reg, config.OrchestratorConfig{})

	history := convo.NewHistory()
	history.Append(convo.NewUserMessage("find TODOs"))

	result, err := o.Run(context.Background(), history)
	require.NoError(t, err)
	assert.True(t, result.TurnComplete)

	msgs := history.Messages()
	require.GreaterOrEqual(t, len(msgs), 4) // user, assistant+call, tool-result, assistant(final)
	var sawToolResult bool
	for _, m := range msgs {
		if m.Role == convo.RoleTool {
			sawToolResult = true
			assert.Equal(t, "search", m.ToolName)
		}
	}
	assert.True(t, sawToolResult)
}

func TestRunToolBudgetExceededEscalatesAfterRecoveryTurn(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search",
		execute: func(ctx context.Context, params map[string]any) (tools.Result, error) {
			return tools.Result{Success: true}, nil
		},
	}))

	// 21 distinct tool calls in the first turn (budget is 20); one more
	// in the recovery turn trips max_tool_calls.
	var firstBatch []llm.StreamChunk
	for i := 0; i < 21; i++ {
		firstBatch = append(firstBatch, llm.StreamChunk{
			Type: llm.ChunkToolCall,
			ToolCall: &convo.ToolCall{
				Name:       "search",
				Parameters: map[string]any{"pattern": string(rune('a' + i))},
			},
		})
	}
	firstBatch = append(firstBatch, doneChunk())

	secondBatch := []llm.StreamChunk{
		{Type: llm.ChunkToolCall, ToolCall: &convo.ToolCall{Name: "search", Parameters: map[string]any{"pattern": "one-more"}}},
		doneChunk(),
	}

	provider := &fakeProvider{batches: [][]llm.StreamChunk{firstBatch, secondBatch}}
	cfg := config.OrchestratorConfig{MaxToolsPerRequest: 20}
	o := newTestOrchestrator(t, provider, reg, cfg)

	history := convo.NewHistory()
	history.Append(convo.NewUserMessage("search for many things"))

	result, err := o.Run(context.Background(), history)
	require.NoError(t, err)
	assert.True(t, result.SessionShouldEnd)
	assert.Equal(t, "max_tool_calls", result.Reason)
}

func TestRunMaxTurnsEscalates(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search",
		execute: func(ctx context.Context, params map[string]any) (tools.Result, error) {
			return tools.Result{Success: true}, nil
		},
	}))

	// Every turn issues one distinct tool call with brief text, never
	// satisfying the >20-char completion rule, and never repeats a
	// signature (avoiding the duplicate-based escape hatches) so the
	// only way out is the turn-count bound.
	var batches [][]llm.StreamChunk
	for i := 0; i < 25; i++ {
		batches = append(batches, []llm.StreamChunk{
			textChunk("ok"),
			{Type: llm.ChunkToolCall, ToolCall: &convo.ToolCall{Name: "search", Parameters: map[string]any{"pattern": string(rune('a' + i))}}},
			doneChunk(),
		})
	}
	provider := &fakeProvider{batches: batches}
	cfg := config.OrchestratorConfig{MaxConversationTurns: 5, MaxConsecutiveTurnsWithOnlyToolCalls: 1000}
	o := newTestOrchestrator(t, provider, reg, cfg)

	history := convo.NewHistory()
	history.Append(convo.NewUserMessage("keep searching"))

	result, err := o.Run(context.Background(), history)
	require.NoError(t, err)
	assert.True(t, result.SessionShouldEnd)
	assert.Equal(t, "max_turns", result.Reason)
}

func TestRunConsecutiveFailuresEscalates(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "broken",
		execute: func(ctx context.Context, params map[string]any) (tools.Result, error) {
			return tools.Result{Success: false, Error: "boom"}, nil
		},
	}))

	var batches [][]llm.StreamChunk
	for i := 0; i < 5; i++ {
		batches = append(batches, []llm.StreamChunk{
			{Type: llm.ChunkToolCall, ToolCall: &convo.ToolCall{Name: "broken", Parameters: map[string]any{"n": i}}},
			doneChunk(),
		})
	}
	provider := &fakeProvider{batches: batches}
	cfg := config.OrchestratorConfig{MaxConsecutiveFailures: 3}
	o := newTestOrchestrator(t, provider, reg, cfg)

	history := convo.NewHistory()
	history.Append(convo.NewUserMessage("run the broken tool repeatedly"))

	result, err := o.Run(context.Background(), history)
	require.NoError(t, err)
	assert.True(t, result.SessionShouldEnd)
	assert.Equal(t, "consecutive_failures", result.Reason)
}

func TestRunPropagatesTransportErrorWithoutPriorToolCalls(t *testing.T) {
	provider := &fakeProvider{batches: [][]llm.StreamChunk{
		{{Type: llm.ChunkError, Err: errors.New("transport exploded")}},
	}}
	reg := tools.NewRegistry()
	o := newTestOrchestrator(t, provider, reg, config.OrchestratorConfig{})

	history := convo.NewHistory()
	history.Append(convo.NewUserMessage("hi"))

	_, err := o.Run(context.Background(), history)
	assert.Error(t, err)
}
