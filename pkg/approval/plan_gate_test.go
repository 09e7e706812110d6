package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanGateConsumeApproved(t *testing.T) {
	g := NewPlanGate()
	g.Approve("plan-1")
	assert.True(t, g.Consume("plan-1"))
}

func TestPlanGateConsumeIsSingleUse(t *testing.T) {
	g := NewPlanGate()
	g.Approve("plan-1")
	g.Consume("plan-1")
	assert.False(t, g.Consume("plan-1"))
}

func TestPlanGateConsumeUnapprovedIsFalse(t *testing.T) {
	g := NewPlanGate()
	assert.False(t, g.Consume("never-approved"))
}
