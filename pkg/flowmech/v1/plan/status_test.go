package plan_test

import (
	"testing"

	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"

	"github.com/stretchr/testify/assert"
)

func TestStatusIsTerminal(t *testing.T) {
	terminal := []plan.Status{plan.StatusSucceeded, plan.StatusFailed, plan.StatusAborted, plan.StatusSkipped}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s must be terminal", s)
	}
	live := []plan.Status{plan.StatusQueued, plan.StatusRunning, plan.StatusAsyncWaiting, plan.StatusExecutingAdviser}
	for _, s := range live {
		assert.False(t, s.IsTerminal(), "%s must not be terminal", s)
	}
	assert.False(t, plan.StatusNoOp.IsTerminal(), "the NO_OP sentinel is not a stored status")
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    plan.Status
		to      plan.Status
		allowed bool
	}{
		{plan.StatusQueued, plan.StatusRunning, true},
		{plan.StatusQueued, plan.StatusAborted, true},
		{plan.StatusQueued, plan.StatusSkipped, true},
		{plan.StatusQueued, plan.StatusSucceeded, false},
		{plan.StatusQueued, plan.StatusAsyncWaiting, false},

		{plan.StatusRunning, plan.StatusAsyncWaiting, true},
		{plan.StatusRunning, plan.StatusExecutingAdviser, true},
		{plan.StatusRunning, plan.StatusSucceeded, true},
		{plan.StatusRunning, plan.StatusQueued, false},

		// Additional async work may arrive while already suspended.
		{plan.StatusAsyncWaiting, plan.StatusAsyncWaiting, true},
		{plan.StatusAsyncWaiting, plan.StatusRunning, true},
		{plan.StatusAsyncWaiting, plan.StatusFailed, true},
		{plan.StatusAsyncWaiting, plan.StatusSkipped, false},

		// Retry is the only edge back into RUNNING after advising.
		{plan.StatusExecutingAdviser, plan.StatusRunning, true},
		{plan.StatusExecutingAdviser, plan.StatusFailed, true},
		{plan.StatusExecutingAdviser, plan.StatusAsyncWaiting, false},

		// Terminal statuses are final.
		{plan.StatusSucceeded, plan.StatusRunning, false},
		{plan.StatusFailed, plan.StatusRunning, false},
		{plan.StatusAborted, plan.StatusQueued, false},
		{plan.StatusSkipped, plan.StatusSucceeded, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}
