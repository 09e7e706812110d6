package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanningToolCreate(t *testing.T) {
	tool := NewPlanningTool()
	result, err := tool.Execute(context.Background(), map[string]any{
		"operation": "create",
		"goal":      "ship feature",
		"steps":     []any{"write code", "write tests", "open PR"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	data := result.Data.(map[string]any)
	planID := data["planId"].(string)
	assert.NotEmpty(t, planID)
	assert.Contains(t, data["checklist"].(string), "write code")

	plan, ok := tool.Get(planID)
	require.True(t, ok)
	assert.Equal(t, "proposed", plan.Status)
	assert.Len(t, plan.Steps, 3)
}

func TestPlanningToolCreateRequiresSteps(t *testing.T) {
	tool := NewPlanningTool()
	_, err := tool.Execute(context.Background(), map[string]any{"operation": "create", "goal": "x"})
	assert.Error(t, err)
}

func TestPlanningToolExecuteMarksExecuted(t *testing.T) {
	tool := NewPlanningTool()
	created, _ := tool.Execute(context.Background(), map[string]any{
		"operation": "create",
		"goal":      "g",
		"steps":     []any{"a"},
	})
	planID := created.Data.(map[string]any)["planId"].(string)

	result, err := tool.Execute(context.Background(), map[string]any{"operation": "execute", "plan_id": planID})
	require.NoError(t, err)
	assert.True(t, result.Success)

	plan, _ := tool.Get(planID)
	assert.Equal(t, "executed", plan.Status)
}

func TestPlanningToolExecuteUnknownPlan(t *testing.T) {
	tool := NewPlanningTool()
	_, err := tool.Execute(context.Background(), map[string]any{"operation": "execute", "plan_id": "missing"})
	assert.Error(t, err)
}

func TestPlanningToolUpdateStepStatus(t *testing.T) {
	tool := NewPlanningTool()
	created, _ := tool.Execute(context.Background(), map[string]any{
		"operation": "create",
		"goal":      "g",
		"steps":     []any{"a", "b"},
	})
	planID := created.Data.(map[string]any)["planId"].(string)

	result, err := tool.Execute(context.Background(), map[string]any{
		"operation":  "update",
		"plan_id":    planID,
		"step_index": float64(1),
		"status":     "completed",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	plan, _ := tool.Get(planID)
	assert.Equal(t, "completed", plan.Steps[0].Status)
	assert.Equal(t, "pending", plan.Steps[1].Status)
}

func TestPlanningToolList(t *testing.T) {
	tool := NewPlanningTool()
	tool.Execute(context.Background(), map[string]any{"operation": "create", "goal": "g1", "steps": []any{"a"}})
	tool.Execute(context.Background(), map[string]any{"operation": "create", "goal": "g2", "steps": []any{"b"}})

	result := tool.list()
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Metadata["count"])
}

func TestFormatPlanChecklist(t *testing.T) {
	plan := &Plan{Goal: "demo", Steps: []PlanStep{
		{Index: 1, Content: "one", Status: "completed"},
		{Index: 2, Content: "two", Status: "pending"},
	}}
	out := FormatPlanChecklist(plan)
	assert.Contains(t, out, "[x] 1. one")
	assert.Contains(t, out, "[ ] 2. two")
}
