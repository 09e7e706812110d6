// Package orchestrator drives the multi-turn conversation loop: it
// streams the model's response, extracts and dispatches tool calls,
// re-injects their results, and decides when a turn — and the whole
// session — is complete (spec.md §4.1, §4.4).
package orchestrator

import (
	"github.com/loomhq/loom/pkg/approval"
	"github.com/loomhq/loom/pkg/cache"
	"github.com/loomhq/loom/pkg/convo"
	"github.com/loomhq/loom/pkg/tools"
)

// TurnState is per-turn scratch, discarded at turn end (spec.md §3).
type TurnState struct {
	// ToolCalls collected during this turn, native and synthetic alike.
	ToolCalls []convo.ToolCall

	// Results holds each dispatched call's outcome, keyed by call id.
	Results map[string]tools.Result

	// SeenSyntheticKeys dedups in-content tool calls within one turn
	// (spec.md §4.2 invariant i): name + canonical(arguments) -> seen.
	SeenSyntheticKeys map[string]bool

	// SyntheticSpans records the [start,end) byte range of each
	// resolved synthetic tool-call object in the accumulated assistant
	// text, so the termination decision can strip them before judging
	// whether the model produced a substantive textual answer.
	SyntheticSpans [][2]int

	// ToolBudgetExceeded is set once a call arrives after
	// maxToolsPerRequest has already been reached; that call is not
	// dispatched.
	ToolBudgetExceeded bool
}

// NewTurnState builds an empty TurnState.
func NewTurnState() *TurnState {
	return &TurnState{
		Results:           make(map[string]tools.Result),
		SeenSyntheticKeys: make(map[string]bool),
	}
}

// OrchestratorState is the cross-turn memory of one conversation
// (spec.md §3): the result cache, dedup tracker, approval cache, plan
// gate, and the failure/duplicate counters the termination decision
// tree reads. All process-local, never persisted.
type OrchestratorState struct {
	ResultCache   *cache.ResultCache
	RecentCalls   *cache.RecentCalls
	ApprovalCache *approval.Cache
	PlanGate      *approval.PlanGate

	// ConsecutiveFailures is the failure circuit breaker (spec.md §4.1
	// step 8a): incremented on every failed dispatch, reset on success.
	ConsecutiveFailures int

	// ConsecutiveDuplicates counts consecutive failed dispatches that
	// were themselves flagged as a duplicate suppression (rapid
	// duplicate or failed-retry-blocked).
	ConsecutiveDuplicates int

	// ConsecutiveSuccessfulDuplicates counts consecutive successful
	// dispatches sharing LastSuccessfulSignature.
	ConsecutiveSuccessfulDuplicates int
	LastSuccessfulSignature         string

	// BlockedSignatures holds signatures the dispatcher refuses to run
	// again until the process restarts (spec.md §4.4 step 3).
	BlockedSignatures map[string]bool
}

// NewOrchestratorState builds a fresh OrchestratorState with default
// cache sizes (spec.md §4.5's 200-entry, 30-minute result cache).
func NewOrchestratorState() *OrchestratorState {
	return &OrchestratorState{
		ResultCache:       cache.New(cache.DefaultCapacity, cache.DefaultTTL),
		RecentCalls:       cache.NewRecentCalls(),
		ApprovalCache:     approval.New(),
		PlanGate:          approval.NewPlanGate(),
		BlockedSignatures: make(map[string]bool),
	}
}
