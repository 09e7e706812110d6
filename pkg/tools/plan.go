package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PlanStep is one numbered step of a plan.
type PlanStep struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Status  string `json:"status"` // pending, in_progress, completed
}

// Plan is a single planning-tool proposal, identified by a UUID the
// dispatcher's plan-approval gate tracks as single-use.
type Plan struct {
	ID      string     `json:"id"`
	Goal    string     `json:"goal"`
	Steps   []PlanStep `json:"steps"`
	Status  string     `json:"status"` // proposed, executed
	Created bool       `json:"-"`
}

// PlanningTool lets the model propose a numbered plan, later execute
// it once the dispatcher's plan-approval gate has admitted its id.
// Approval bookkeeping (the approved-plan-id set) lives in the
// orchestrator/approval layer, not here: this tool only stores and
// renders plan content.
type PlanningTool struct {
	mu    sync.RWMutex
	plans map[string]*Plan
}

// NewPlanningTool builds an empty PlanningTool.
func NewPlanningTool() *PlanningTool {
	return &PlanningTool{plans: make(map[string]*Plan)}
}

func (t *PlanningTool) Info() Info {
	return Info{
		Name:        "planning",
		Description: "Propose a numbered step-by-step plan for a complex task, then execute it once approved.",
		Category:    "planning",
		Parameters: []Parameter{
			{Name: "operation", Kind: "string", Description: "create, execute, update, or list", Required: true, Enum: []string{"create", "execute", "update", "list"}},
			{Name: "goal", Kind: "string", Description: "Short description of what the plan accomplishes (operation=create)"},
			{Name: "steps", Kind: "array", Description: "List of step descriptions (operation=create)"},
			{Name: "plan_id", Kind: "string", Description: "Target plan id (operation=execute/update)"},
			{Name: "step_index", Kind: "number", Description: "1-based step index to update (operation=update)"},
			{Name: "status", Kind: "string", Description: "New status for the step (operation=update)", Enum: []string{"pending", "in_progress", "completed"}},
		},
		DisplayOutput: "text",
	}
}

func (t *PlanningTool) Execute(ctx context.Context, params map[string]any) (Result, error) {
	op, _ := params["operation"].(string)
	switch op {
	case "create":
		return t.create(params)
	case "execute":
		return t.execute(params)
	case "update":
		return t.update(params)
	case "list":
		return t.list(), nil
	default:
		err := fmt.Errorf("unknown planning operation %q", op)
		return Result{Success: false, Error: err.Error()}, err
	}
}

func (t *PlanningTool) create(params map[string]any) (Result, error) {
	goal, _ := params["goal"].(string)
	if goal == "" {
		err := fmt.Errorf("goal parameter is required")
		return Result{Success: false, Error: err.Error()}, err
	}
	rawSteps, ok := params["steps"].([]any)
	if !ok || len(rawSteps) == 0 {
		err := fmt.Errorf("steps parameter is required and must be a non-empty array")
		return Result{Success: false, Error: err.Error()}, err
	}

	steps := make([]PlanStep, 0, len(rawSteps))
	for i, raw := range rawSteps {
		content, _ := raw.(string)
		if content == "" {
			err := fmt.Errorf("step %d is not a non-empty string", i)
			return Result{Success: false, Error: err.Error()}, err
		}
		steps = append(steps, PlanStep{Index: i + 1, Content: content, Status: "pending"})
	}

	plan := &Plan{ID: uuid.NewString(), Goal: goal, Steps: steps, Status: "proposed", Created: true}

	t.mu.Lock()
	t.plans[plan.ID] = plan
	t.mu.Unlock()

	return Result{
		Success: true,
		Data: map[string]any{
			"planId":    plan.ID,
			"goal":      plan.Goal,
			"checklist": FormatPlanChecklist(plan),
		},
		Metadata: map[string]any{"planId": plan.ID, "stepCount": len(steps)},
	}, nil
}

// execute marks a plan executed. The dispatcher must have already
// confirmed the plan id is in the orchestrator's approved set before
// routing here; this method trusts that gate and does not re-check it.
func (t *PlanningTool) execute(params map[string]any) (Result, error) {
	planID, _ := params["plan_id"].(string)
	if planID == "" {
		err := fmt.Errorf("plan_id parameter is required")
		return Result{Success: false, Error: err.Error()}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	plan, ok := t.plans[planID]
	if !ok {
		err := fmt.Errorf("unknown plan id %q", planID)
		return Result{Success: false, Error: err.Error()}, err
	}
	plan.Status = "executed"

	return Result{
		Success:  true,
		Data:     map[string]any{"planId": plan.ID, "status": plan.Status},
		Metadata: map[string]any{"planId": plan.ID},
	}, nil
}

func (t *PlanningTool) update(params map[string]any) (Result, error) {
	planID, _ := params["plan_id"].(string)
	idx, _ := params["step_index"].(float64)
	status, _ := params["status"].(string)
	if planID == "" || idx == 0 || status == "" {
		err := fmt.Errorf("plan_id, step_index, and status parameters are required")
		return Result{Success: false, Error: err.Error()}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	plan, ok := t.plans[planID]
	if !ok {
		err := fmt.Errorf("unknown plan id %q", planID)
		return Result{Success: false, Error: err.Error()}, err
	}
	stepIndex := int(idx)
	for i := range plan.Steps {
		if plan.Steps[i].Index == stepIndex {
			plan.Steps[i].Status = status
			return Result{
				Success:  true,
				Data:     map[string]any{"planId": plan.ID, "checklist": FormatPlanChecklist(plan)},
				Metadata: map[string]any{"planId": plan.ID, "stepIndex": stepIndex},
			}, nil
		}
	}
	err := fmt.Errorf("step %d not found in plan %q", stepIndex, planID)
	return Result{Success: false, Error: err.Error()}, err
}

func (t *PlanningTool) list() Result {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.plans))
	for id := range t.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	plans := make([]*Plan, 0, len(ids))
	for _, id := range ids {
		plans = append(plans, t.plans[id])
	}
	return Result{Success: true, Data: plans, Metadata: map[string]any{"count": len(plans)}}
}

// Get returns a plan by id, for the orchestrator's approval flow to
// render when deciding whether to admit the plan id into the approved
// set.
func (t *PlanningTool) Get(planID string) (*Plan, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.plans[planID]
	return p, ok
}

// FormatPlanChecklist renders a numbered checklist for terminal
// display, ahead of the approval prompt.
func FormatPlanChecklist(plan *Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n", plan.Goal)
	for _, step := range plan.Steps {
		icon := "[ ]"
		switch step.Status {
		case "in_progress":
			icon = "[~]"
		case "completed":
			icon = "[x]"
		}
		fmt.Fprintf(&b, "%s %d. %s\n", icon, step.Index, step.Content)
	}
	return b.String()
}
