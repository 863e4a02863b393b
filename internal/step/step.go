// Package step defines the step execution contract and the static registry
// the engine resolves step types through. Step implementations are provided
// by the consumer of the engine and registered at process start.
package step

import (
	"context"

	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/waiter"
)

// Outcome is what a step execution produces. Exactly one field is set:
//   - Async: the step suspended on external callbacks.
//   - Task: the step wants remote work queued on its behalf.
//   - Response: the step finished synchronously.
type Outcome struct {
	Async    *plan.AsyncResponse
	Task     *plan.TaskRequest
	Response *plan.StepResponse
}

// Step executes one node's work. On first invocation responses is empty; on
// resume it carries the accumulated async results keyed by correlation ID.
// The resolved parameter blob is opaque to the engine and decoded by the
// step itself.
type Step interface {
	Execute(ctx context.Context, ambiance plan.Ambiance, resolvedParams []byte, responses map[string]waiter.ResponseData) (*Outcome, error)
}

// Abortable is the optional capability a step implements when its suspended
// async work can be cancelled. HandleAbort receives the async-wait response
// the node is currently suspended on.
type Abortable interface {
	HandleAbort(ctx context.Context, ambiance plan.Ambiance, resolvedParams []byte, asyncResponse *plan.AsyncResponse) error
}
