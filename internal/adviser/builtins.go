package adviser

import (
	"context"
	"time"

	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
)

// Built-in adviser type names. Nodes reference these in their AdviserTypes.
const (
	TypeOnSuccess      = "ON_SUCCESS"
	TypeOnFailRollback = "ON_FAIL_ROLLBACK"
	TypeRetry          = "RETRY"
	TypeIgnoreFail     = "IGNORE_FAIL"
	TypeAbortPlan      = "ABORT_PLAN"
)

// DefaultRetryBudget bounds the RETRY adviser when the node does not
// override it.
const DefaultRetryBudget = 3

// DefaultRetryWait is the delay before a retried dispatch.
const DefaultRetryWait = 5 * time.Second

func builtins() map[string]Adviser {
	return map[string]Adviser{
		TypeOnSuccess:      AdviserFunc(onSuccess),
		TypeOnFailRollback: AdviserFunc(onFailRollback),
		TypeRetry:          &RetryAdviser{Budget: DefaultRetryBudget, Wait: DefaultRetryWait},
		TypeIgnoreFail:     AdviserFunc(ignoreFail),
		TypeAbortPlan:      AdviserFunc(abortPlan),
	}
}

// onSuccess proceeds with the plan when the step succeeded; no opinion otherwise.
func onSuccess(ctx context.Context, event plan.AdvisingEvent) (*plan.AdviserResponse, error) {
	if event.StepResponse.Status == plan.StatusSucceeded {
		return &plan.AdviserResponse{Type: plan.AdviseProceed}, nil
	}
	return nil, nil
}

// onFailRollback routes a failed step to its rollback node; no opinion otherwise.
func onFailRollback(ctx context.Context, event plan.AdvisingEvent) (*plan.AdviserResponse, error) {
	if event.StepResponse.Status == plan.StatusFailed {
		return &plan.AdviserResponse{Type: plan.AdviseRollback}, nil
	}
	return nil, nil
}

// ignoreFail turns a failure into a success so the plan continues.
func ignoreFail(ctx context.Context, event plan.AdvisingEvent) (*plan.AdviserResponse, error) {
	if event.StepResponse.Status == plan.StatusFailed {
		return &plan.AdviserResponse{Type: plan.AdviseMarkSuccess}, nil
	}
	return nil, nil
}

// abortPlan stops the whole plan on failure.
func abortPlan(ctx context.Context, event plan.AdvisingEvent) (*plan.AdviserResponse, error) {
	if event.StepResponse.Status == plan.StatusFailed {
		return &plan.AdviserResponse{Type: plan.AdviseEndPlan}, nil
	}
	return nil, nil
}

// RetryAdviser re-runs a failed step while the node's retry count is within
// budget. Once the budget is spent it has no opinion, letting later advisers
// (or the engine default) end the node.
type RetryAdviser struct {
	Budget int
	Wait   time.Duration
}

func (a *RetryAdviser) Advise(ctx context.Context, event plan.AdvisingEvent) (*plan.AdviserResponse, error) {
	if event.StepResponse.Status != plan.StatusFailed {
		return nil, nil
	}
	if event.NodeExecution.RetryCount >= a.Budget {
		return nil, nil
	}
	return &plan.AdviserResponse{Type: plan.AdviseRetry, RetryWait: a.Wait}, nil
}
