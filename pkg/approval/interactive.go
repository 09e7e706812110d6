package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

// ErrApprovalTimeout is returned when an interactive prompt is not
// answered within the configured timeout (spec.md §4.4 step 4: "on
// timeout or error, return a failure Result").
var ErrApprovalTimeout = errors.New("approval request timed out")

// Collaborator asks a human to approve or deny a pending tool call.
type Collaborator interface {
	Confirm(ctx context.Context, prompt string, timeout time.Duration) (bool, error)
}

// InteractiveCollaborator prompts on the terminal via survey/v2,
// bounding the wait with a timeout so a non-interactive or stalled
// session can't hang the turn loop forever.
type InteractiveCollaborator struct{}

// NewInteractiveCollaborator builds an InteractiveCollaborator.
func NewInteractiveCollaborator() *InteractiveCollaborator {
	return &InteractiveCollaborator{}
}

// Confirm renders prompt as a yes/no question and waits up to timeout
// for an answer. The prompt runs on its own goroutine so a timeout can
// be enforced without survey itself supporting cancellation.
func (c *InteractiveCollaborator) Confirm(ctx context.Context, prompt string, timeout time.Duration) (bool, error) {
	type result struct {
		approved bool
		err      error
	}
	done := make(chan result, 1)

	go func() {
		var approved bool
		q := &survey.Confirm{Message: prompt, Default: false}
		err := survey.AskOne(q, &approved)
		done <- result{approved: approved, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return false, fmt.Errorf("approval prompt failed: %w", r.err)
		}
		return r.approved, nil
	case <-time.After(timeout):
		return false, ErrApprovalTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
