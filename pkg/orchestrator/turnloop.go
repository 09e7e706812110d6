package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/convo"
	"github.com/loomhq/loom/pkg/llm"
	"github.com/loomhq/loom/pkg/streamparser"
	"github.com/loomhq/loom/pkg/tools"
)

// complexPromptMinWords is the rough-and-ready threshold the "looks
// complex" heuristic uses to decide whether to steer the model toward
// the planning tool (spec.md §4.1 step 1).
const complexPromptMinWords = 40

// TurnResult reports how runConversation ended (spec.md §4.1).
type TurnResult struct {
	TurnComplete     bool
	SessionShouldEnd bool
	Reason           string
}

// Orchestrator drives the turn loop described in spec.md §4.1: it
// streams the model's response, dispatches tool calls cooperatively as
// they're recognized, and decides when to stop.
type Orchestrator struct {
	Provider   llm.Provider
	Registry   *tools.Registry
	Formatter  *tools.Formatter
	Dispatcher *Dispatcher
	State      *OrchestratorState
	Config     config.OrchestratorConfig

	// OnText is invoked with each chunk of assistant text as it
	// arrives, including any in-band tool-call JSON; nothing is
	// withheld.
	OnText func(string)

	// SystemPrompt is the base system prompt prepended to every
	// request; planning guidance is appended to it for complex prompts.
	SystemPrompt string

	// Recovery scratch that persists across turns within one
	// runConversation call (spec.md §4.1 steps 8e-8h).
	finalAnswerRequested  bool
	onlyToolCallTurns     int
	recoveryTurnSpent     bool
	priorTurnHadToolCalls bool
}

// New builds an Orchestrator from its collaborating components.
func New(provider llm.Provider, registry *tools.Registry, dispatcher *Dispatcher, state *OrchestratorState, cfg config.OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		Provider:   provider,
		Registry:   registry,
		Formatter:  tools.NewFormatter(),
		Dispatcher: dispatcher,
		State:      state,
		Config:     cfg,
	}
}

// callIDSeq is a per-turn ordinal generator for the {toolName}-{epochMillis}-{ordinal}
// stable identifier spec.md §4.1 step 3 requires.
type callIDSeq struct {
	ordinal int
}

func (s *callIDSeq) next(toolName string, now time.Time) string {
	s.ordinal++
	return fmt.Sprintf("%s-%d-%d", toolName, now.UnixMilli(), s.ordinal)
}

// Run drives the conversation from the latest user message in history
// to a final textual answer or an escalated session end, per spec.md
// §4.1's full algorithm.
func (o *Orchestrator) Run(ctx context.Context, history *convo.History) (TurnResult, error) {
	if !o.Config.EnableToolCalling {
		return TurnResult{TurnComplete: true}, nil
	}

	totalToolCalls := 0
	o.finalAnswerRequested = false
	o.onlyToolCallTurns = 0
	o.recoveryTurnSpent = false
	o.priorTurnHadToolCalls = false

	for turnCount := 1; turnCount <= o.Config.MaxConversationTurns; turnCount++ {
		turn := NewTurnState()
		seq := &callIDSeq{}

		systemPrompt := o.composeSystemPrompt(history)
		messages := append([]convo.Message{convo.NewSystemMessage(systemPrompt)}, history.Messages()...)

		chunks, err := o.Provider.GenerateStreaming(ctx, messages, o.Registry.Catalog())
		if err != nil {
			if o.priorTurnHadToolCalls {
				return TurnResult{TurnComplete: true}, nil
			}
			return TurnResult{}, err
		}

		var textBuf strings.Builder
		scanner := streamparser.New()
		var watchdog <-chan time.Time
		var timer *time.Timer
		if o.priorTurnHadToolCalls {
			timer = time.NewTimer(o.Config.ModelResponseAfterToolsTimeoutDuration())
			watchdog = timer.C
		}

		// Transport errors mid-stream are forced to completion rather
		// than propagated when this turn inherited tool calls from the
		// previous one, to avoid hanging the caller (spec.md §4.1
		// Failure semantics).
		streamErr := o.consumeStream(ctx, chunks, watchdog, turn, seq, &totalToolCalls, &textBuf, scanner)
		if timer != nil {
			timer.Stop()
		}
		if streamErr != nil && !o.priorTurnHadToolCalls {
			return TurnResult{}, streamErr
		}

		assistantText := textBuf.String()
		strippedText := stripSyntheticSpans(assistantText, turn.SyntheticSpans)

		history.Append(convo.Message{
			Role:      convo.RoleAssistant,
			Content:   assistantText,
			ToolCalls: turn.ToolCalls,
			CreatedAt: time.Now(),
		})
		for _, tc := range turn.ToolCalls {
			result, ok := turn.Results[tc.ID]
			if !ok {
				continue
			}
			rendered := o.Formatter.Format(tc.Name, tc.Parameters, result, o.priorFailureCountFor(tc.Name, tc.Parameters))
			history.Append(convo.NewToolResultMessage(tc.ID, tc.Name, rendered))
		}

		hadToolCalls := len(turn.ToolCalls) > 0
		if hadToolCalls {
			o.priorTurnHadToolCalls = true
		}
		hadPlanningCall, planningFailed, planningSucceeded := planningOutcome(turn)

		// 8a: consecutive failure circuit breaker.
		if o.State.ConsecutiveFailures >= o.Config.MaxConsecutiveFailures {
			return TurnResult{SessionShouldEnd: true, Reason: "consecutive_failures"}, nil
		}

		// 8b: final answer requested but model still silent.
		if o.finalAnswerRequested && !hadToolCalls && strings.TrimSpace(strippedText) == "" {
			return TurnResult{TurnComplete: true}, nil
		}

		// Branches c-i all presuppose tool calls happened this turn;
		// an ordinary tool-free turn has nothing left to dispatch or
		// await, so it completes here (spec.md §4.1's decision tree
		// names no separate branch for this, the common, case). A
		// turn whose only calls were rejected by the budget check
		// still has work for 8e to do, so it's excluded here.
		if !hadToolCalls && !turn.ToolBudgetExceeded {
			o.onlyToolCallTurns = 0
			return TurnResult{TurnComplete: true}, nil
		}

		// 8c: substantive textual content after tool calls.
		if hadToolCalls && len(strings.TrimSpace(strippedText)) > 20 {
			o.onlyToolCallTurns = 0
			o.finalAnswerRequested = false
			return TurnResult{TurnComplete: true}, nil
		}

		// 8d: planning tool call outcome.
		if hadPlanningCall {
			if planningFailed {
				return TurnResult{TurnComplete: true}, nil
			}
			if planningSucceeded && turnCount >= 3 {
				return TurnResult{TurnComplete: true}, nil
			}
			continue
		}

		// 8e: tool budget exceeded.
		if turn.ToolBudgetExceeded {
			if o.recoveryTurnSpent {
				return TurnResult{SessionShouldEnd: true, Reason: "max_tool_calls"}, nil
			}
			o.recoveryTurnSpent = true
			history.Append(convo.NewSystemMessage("The tool-call budget for this request has been reached. Do not call any more tools; answer with the information already gathered."))
			continue
		}

		// 8f: too many consecutive tool-only turns.
		if hadToolCalls && strings.TrimSpace(strippedText) == "" {
			o.onlyToolCallTurns++
		} else {
			o.onlyToolCallTurns = 0
		}
		if o.onlyToolCallTurns >= o.Config.MaxConsecutiveTurnsWithOnlyToolCalls && o.State.ConsecutiveFailures == 0 {
			history.Append(convo.NewSystemMessage("You must now answer the user directly in plain text. Do not call any more tools."))
			o.finalAnswerRequested = true
			o.onlyToolCallTurns = 0
			continue
		}

		// 8g: consecutive successful duplicates.
		if o.State.ConsecutiveSuccessfulDuplicates >= o.Config.MaxSuccessfulDuplicates {
			o.State.BlockedSignatures[o.State.LastSuccessfulSignature] = true
			history.Append(convo.NewSystemMessage("Stop calling that tool with the same arguments; it has already succeeded. Use the result you already have."))
			continue
		}

		// 8h: consecutive failed duplicates.
		if o.State.ConsecutiveDuplicates >= o.Config.MaxConsecutiveDuplicates {
			history.Append(convo.NewSystemMessage("Stop retrying that failing call with the same arguments; try a different approach."))
			continue
		}

		// 8i: otherwise, continue.
	}

	return TurnResult{SessionShouldEnd: true, Reason: "max_turns"}, nil
}

// consumeStream reads chunks until ChunkDone/ChunkError/watchdog fires,
// dispatching tool calls cooperatively as they're recognized (spec.md
// §4.1 steps 2-6).
func (o *Orchestrator) consumeStream(
	ctx context.Context,
	chunks <-chan llm.StreamChunk,
	watchdog <-chan time.Time,
	turn *TurnState,
	seq *callIDSeq,
	totalToolCalls *int,
	textBuf *strings.Builder,
	scanner *streamparser.Scanner,
) error {
	for {
		select {
		case <-watchdog:
			return nil
		case chunk, open := <-chunks:
			if !open {
				return nil
			}
			switch chunk.Type {
			case llm.ChunkText, llm.ChunkThinking:
				textBuf.WriteString(chunk.Text)
				for _, cand := range scanner.Feed(chunk.Text) {
					turn.SyntheticSpans = append(turn.SyntheticSpans, [2]int{cand.Start, cand.End})
					key := cand.Name + convo.Canonical(cand.Arguments)
					if turn.SeenSyntheticKeys[key] {
						continue
					}
					turn.SeenSyntheticKeys[key] = true
					o.dispatchCall(ctx, cand.Name, cand.Arguments, true, turn, seq, totalToolCalls)
				}
				// Full real-time suppression of in-band tool-call JSON
				// would require holding back partial objects until the
				// scanner resolves or rules them out; chunks are
				// forwarded as they arrive instead. History keeps the
				// full text; stripSyntheticSpans removes resolved call
				// JSON only from the text the termination checks read.
				if o.OnText != nil {
					o.OnText(chunk.Text)
				}
			case llm.ChunkToolCall:
				if chunk.ToolCall != nil {
					o.dispatchCall(ctx, chunk.ToolCall.Name, chunk.ToolCall.Parameters, false, turn, seq, totalToolCalls)
				}
			case llm.ChunkDone:
				return nil
			case llm.ChunkError:
				return chunk.Err
			}
		}
	}
}

// dispatchCall assigns the stable call identifier and runs the
// dispatcher synchronously, honoring the tool-call budget.
func (o *Orchestrator) dispatchCall(ctx context.Context, name string, params any, synthetic bool, turn *TurnState, seq *callIDSeq, totalToolCalls *int) {
	*totalToolCalls++
	if *totalToolCalls > o.Config.MaxToolsPerRequest {
		turn.ToolBudgetExceeded = true
		return
	}

	callID := seq.next(name, time.Now())
	paramMap, err := decodeParams(params)
	if err != nil {
		paramMap = map[string]any{}
	}

	tc := convo.ToolCall{ID: callID, Name: name, Parameters: paramMap, Synthetic: synthetic}
	turn.ToolCalls = append(turn.ToolCalls, tc)

	result := o.Dispatcher.Dispatch(ctx, callID, name, params)
	turn.Results[callID] = result
}

// priorFailureCountFor approximates the formatter's "same signature
// has failed >= 2 times" input from the blocked-signature set: a
// blocked signature counts as 2, anything else as 0. It is a
// best-effort count, not an exact historical tally.
func (o *Orchestrator) priorFailureCountFor(toolName string, params map[string]any) int {
	signature := convo.Signature(toolName, params)
	if o.State.BlockedSignatures[signature] {
		return 2
	}
	return 0
}

// composeSystemPrompt appends planning guidance when the latest user
// message looks complex (spec.md §4.1 step 1).
func (o *Orchestrator) composeSystemPrompt(history *convo.History) string {
	prompt := o.SystemPrompt
	if looksComplex(history) {
		prompt += "\n\nThis request looks multi-step. Consider proposing a plan with the planning tool before acting."
	}
	return prompt
}

// looksComplex is a rough heuristic: a long latest user message, or
// one containing a sequencing word, is treated as complex.
func looksComplex(history *convo.History) bool {
	last, ok := history.Last()
	if !ok || last.Role != convo.RoleUser {
		return false
	}
	words := strings.Fields(last.Content)
	if len(words) >= complexPromptMinWords {
		return true
	}
	lower := strings.ToLower(last.Content)
	for _, marker := range []string{"first", "then", "after that", "step by step", "multiple files", "refactor"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// planningOutcome reports whether this turn contained a planning tool
// call and, if so, whether it failed or succeeded.
func planningOutcome(turn *TurnState) (had, failed, succeeded bool) {
	for _, tc := range turn.ToolCalls {
		if tc.Name != "planning" {
			continue
		}
		had = true
		if result, ok := turn.Results[tc.ID]; ok {
			if result.Success {
				succeeded = true
			} else {
				failed = true
			}
		}
	}
	return had, failed, succeeded
}

// stripSyntheticSpans removes resolved synthetic tool-call JSON spans
// from text. Spans arrive in ascending offset order (the scanner scans
// left to right), so a single forward pass suffices.
func stripSyntheticSpans(text string, spans [][2]int) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	cursor := 0
	for _, span := range spans {
		start, end := span[0], span[1]
		if start < cursor || end > len(text) || start > end {
			continue
		}
		b.WriteString(text[cursor:start])
		cursor = end
	}
	b.WriteString(text[cursor:])
	return strings.TrimSpace(b.String())
}
