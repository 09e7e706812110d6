package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/loomhq/loom/pkg/approval"
	"github.com/loomhq/loom/pkg/cache"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/convo"
	"github.com/loomhq/loom/pkg/tools"
)

// maxSuggestionDistance bounds how far a misspelled tool name may be
// from a registered one before it stops being offered as a "did you
// mean" suggestion (spec.md §4.4 step 1).
const maxSuggestionDistance = 3

// Dispatcher validates, authorizes, deduplicates, executes, records,
// and reports a single tool call (spec.md §4.4).
type Dispatcher struct {
	registry     *tools.Registry
	state        *OrchestratorState
	collaborator approval.Collaborator
	cfg          config.OrchestratorConfig
	renderer     tools.Renderer

	// Interactive indicates a human is present to respond to approval
	// and plan-approval prompts. A non-interactive run (e.g. scripted
	// CI invocation) skips the planning-create approval side effect
	// entirely, per spec.md §4.4 step 8's "and the session is
	// interactive" condition.
	Interactive bool
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(registry *tools.Registry, state *OrchestratorState, collaborator approval.Collaborator, cfg config.OrchestratorConfig, renderer tools.Renderer) *Dispatcher {
	return &Dispatcher{
		registry:     registry,
		state:        state,
		collaborator: collaborator,
		cfg:          cfg,
		renderer:     renderer,
	}
}

// Dispatch runs the full ten-step pipeline for one tool call. rawParams
// is either an already-decoded map[string]any (native tool calls) or a
// raw JSON string (synthetic calls extracted from stream content).
func (d *Dispatcher) Dispatch(ctx context.Context, callID, toolName string, rawParams any) tools.Result {
	start := time.Now()

	// Step 1: resolution.
	tool, ok := d.registry.Get(toolName)
	if !ok {
		msg := fmt.Sprintf("tool %q does not exist. Available tools: %s.%s",
			toolName, strings.Join(d.registry.Names(), ", "), d.suggestionHint(toolName))
		return d.finish(callID, toolName, nil, tools.Result{Success: false, Error: msg}, start, false)
	}
	info := tool.Info()

	// Step 2: parameter parsing.
	params, err := decodeParams(rawParams)
	if err != nil {
		msg := fmt.Sprintf("failed to parse tool parameters: %v", err)
		return d.finish(callID, toolName, nil, tools.Result{Success: false, Error: msg}, start, false)
	}

	// Step 3: signature & deduplication.
	signature := convo.Signature(toolName, params)
	if d.state.BlockedSignatures[signature] {
		return d.finish(callID, toolName, params, tools.Result{
			Success: false,
			Error:   "tool call blocked: identical arguments were retried too many times",
		}, start, true)
	}
	switch d.state.RecentCalls.Check(signature) {
	case cache.RapidDuplicate:
		return d.finish(callID, toolName, params, tools.Result{
			Success: false,
			Error:   "rapid duplicate call suppressed: an identical call just ran",
		}, start, true)
	case cache.FailedRetryBlocked:
		return d.finish(callID, toolName, params, tools.Result{
			Success: false,
			Error:   "repeated failed call suppressed: wait before retrying with the same arguments",
		}, start, true)
	}
	d.state.RecentCalls.Record(signature, false) // tentative; updated in finish

	// Step 4: approval.
	if containsString(d.cfg.RequireApprovalForCategories, info.Category) {
		if result, blocked := d.authorize(ctx, toolName, info.Category); blocked {
			return d.finish(callID, toolName, params, result, start, false)
		}
	}

	// Step 5: plan-approval gate.
	if toolName == "planning" {
		if op, _ := params["operation"].(string); op == "execute" {
			planID, _ := params["plan_id"].(string)
			if !d.state.PlanGate.Consume(planID) {
				return d.finish(callID, toolName, params, tools.Result{
					Success: false,
					Error:   fmt.Sprintf("plan %q is not approved for execution", planID),
				}, start, false)
			}
		}
	}

	// Step 6 (parameter validation) is folded into each tool's Execute,
	// which reports a validation failure as a failed Result;
	// executeWithTimeout copies a returned error into Result.Error when
	// the tool left it empty.

	// Step 7: execution with timeout.
	result := d.executeWithTimeout(ctx, tool, params)

	// Step 8: post-execute side effect for planning.create.
	if toolName == "planning" {
		if op, _ := params["operation"].(string); op == "create" {
			d.handlePlanCreated(ctx, tool, result)
		}
	}

	return d.finish(callID, toolName, params, result, start, false)
}

// authorize implements step 4's approval-cache consultation and
// interactive fallback. The bool return is true when the call must
// stop here with the returned Result.
func (d *Dispatcher) authorize(ctx context.Context, toolName, category string) (tools.Result, bool) {
	switch d.state.ApprovalCache.Lookup(toolName, category) {
	case approval.Denied:
		return tools.Result{Success: false, Error: "skipped: tool category previously denied", Metadata: map[string]any{"skipped": true}}, true
	case approval.Approved:
		return tools.Result{}, false
	}

	// Undecided.
	if d.cfg.SkipUnapprovedTools {
		return tools.Result{Success: false, Error: "skipped: approval required and skip-unapproved is enabled", Metadata: map[string]any{"skipped": true}}, true
	}

	prompt := fmt.Sprintf("Approve %s call to %q?", category, toolName)
	approved, err := d.collaborator.Confirm(ctx, prompt, 60*time.Second)
	if err != nil {
		return tools.Result{Success: false, Error: fmt.Sprintf("approval failed: %v", err)}, true
	}
	d.state.ApprovalCache.MemoizeTool(toolName, category, approved)
	if !approved {
		return tools.Result{Success: false, Error: "skipped: user denied approval", Metadata: map[string]any{"skipped": true}}, true
	}
	return tools.Result{}, false
}

type execOutcome struct {
	result tools.Result
}

// executeWithTimeout races the tool's handler against cfg.ToolTimeout.
func (d *Dispatcher) executeWithTimeout(ctx context.Context, tool tools.Tool, params map[string]any) tools.Result {
	execCtx, cancel := context.WithTimeout(ctx, d.cfg.ToolTimeoutDuration())
	defer cancel()

	done := make(chan execOutcome, 1)
	go func() {
		result, err := tool.Execute(execCtx, params)
		if err != nil && result.Error == "" {
			result.Success = false
			result.Error = err.Error()
		}
		done <- execOutcome{result: result}
	}()

	select {
	case out := <-done:
		return out.result
	case <-execCtx.Done():
		return tools.Result{Success: false, Error: "tool execution timed out"}
	}
}

// handlePlanCreated implements step 8: when requirePlanApproval is on
// and the session is interactive, display the new plan and ask for
// approval before its id is admitted to the plan gate.
func (d *Dispatcher) handlePlanCreated(ctx context.Context, tool tools.Tool, result tools.Result) {
	if !result.Success || !d.cfg.RequirePlanApproval || !d.Interactive {
		return
	}
	planningTool, ok := tool.(*tools.PlanningTool)
	if !ok {
		return
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		return
	}
	planID, _ := data["planId"].(string)
	if planID == "" {
		return
	}
	plan, ok := planningTool.Get(planID)
	if !ok {
		return
	}

	if d.renderer != nil {
		d.renderer.Write(tools.FormatPlanChecklist(plan))
	}
	approved, err := d.collaborator.Confirm(ctx, "Approve this plan for execution?", 60*time.Second)
	if err == nil && approved {
		d.state.PlanGate.Approve(planID)
	} else {
		data["executionDeclined"] = true
	}
}

// finish implements steps 9-10: cache the result under callID, update
// the recent-calls outcome and duplicate/failure counters, and emit
// the execution banner.
func (d *Dispatcher) finish(callID, toolName string, params map[string]any, result tools.Result, start time.Time, duplicateFlagged bool) tools.Result {
	result.ToolName = toolName
	if result.ExecutionTime == 0 {
		result.ExecutionTime = time.Since(start)
	}

	signature := convo.Signature(toolName, params)
	d.state.RecentCalls.Record(signature, result.Success)

	if result.Success {
		d.state.ConsecutiveFailures = 0
		d.state.ConsecutiveDuplicates = 0
		if signature == d.state.LastSuccessfulSignature {
			d.state.ConsecutiveSuccessfulDuplicates++
		} else {
			d.state.LastSuccessfulSignature = signature
			d.state.ConsecutiveSuccessfulDuplicates = 1
		}
		if d.state.ConsecutiveSuccessfulDuplicates >= d.cfg.MaxSuccessfulDuplicates {
			d.state.BlockedSignatures[signature] = true
		}
	} else {
		d.state.ConsecutiveFailures++
		if duplicateFlagged {
			d.state.ConsecutiveDuplicates++
			if d.state.ConsecutiveDuplicates >= d.cfg.MaxConsecutiveDuplicates {
				d.state.BlockedSignatures[signature] = true
			}
		} else {
			d.state.ConsecutiveDuplicates = 0
		}
	}

	d.state.ResultCache.Put(callID, result)
	d.emitBanner(toolName, params, result)
	return result
}

// emitBanner implements step 10's concise execution banner.
func (d *Dispatcher) emitBanner(toolName string, params map[string]any, result tools.Result) {
	if d.renderer == nil {
		return
	}
	switch {
	case toolName == "execution":
		if cmd, _ := params["command"].(string); cmd != "" {
			d.renderer.Write("$ " + cmd)
		}
	case toolName == "filesystem":
		if op, _ := params["operation"].(string); op == "write" {
			if path, _ := params["path"].(string); path != "" {
				d.renderer.Write(fmt.Sprintf("Creating file: %s", path))
			}
		}
	}

	if result.Success {
		if result.ExecutionTime > 2*time.Second {
			d.renderer.Success(fmt.Sprintf("%s completed in %.1fs", toolName, result.ExecutionTime.Seconds()))
		} else {
			d.renderer.Success(fmt.Sprintf("%s completed", toolName))
		}
		return
	}
	d.renderer.Error(fmt.Sprintf("%s failed: %s", toolName, result.Error))
}

// suggestionHint computes a Levenshtein-based "did you mean" hint
// across registered tool names within maxSuggestionDistance.
func (d *Dispatcher) suggestionHint(name string) string {
	var matches []string
	for _, candidate := range d.registry.Names() {
		if levenshtein.ComputeDistance(name, candidate) <= maxSuggestionDistance {
			matches = append(matches, candidate)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" Did you mean: %s?", strings.Join(matches, ", "))
}

// decodeParams normalizes either a decoded map or a raw JSON string
// into a parameter map (spec.md §3 ToolCall: "if the transport
// delivers the parameters as a string, the orchestrator parses JSON
// once").
func decodeParams(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}, nil
		}
		var params map[string]any
		if err := json.Unmarshal([]byte(v), &params); err != nil {
			return nil, err
		}
		return params, nil
	default:
		return map[string]any{}, nil
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
