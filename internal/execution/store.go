// Package execution persists node execution records and enforces the status
// state machine. Updates are field-scoped: callers never overwrite whole
// records, they ask the store for exactly the mutation they need so
// concurrent writers cannot clobber each other's fields.
package execution

import (
	"context"

	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
)

// FieldOp is an extra field mutation applied atomically with a status update.
type FieldOp func(node *plan.NodeExecution)

// WithFailureMessage records the failure detail alongside a status update.
func WithFailureMessage(msg string) FieldOp {
	return func(node *plan.NodeExecution) {
		node.FailureMessage = msg
	}
}

// WithEndedNow stamps the end timestamp alongside a terminal status update.
func WithEndedNow() FieldOp {
	return func(node *plan.NodeExecution) {
		node.EndedAt = nowFunc()
	}
}

// Store is the node execution persistence interface. All reads return
// defensive copies. All writes validate the status transition table and
// return the updated record.
type Store interface {
	// Save persists a new node execution. Saving an ID that already exists
	// returns an InvalidRequestError.
	Save(ctx context.Context, node *plan.NodeExecution) error

	// Get returns a copy of the node execution, or NotFoundError.
	Get(ctx context.Context, id string) (*plan.NodeExecution, error)

	// UpdateStatus moves the node to status, applying any extra field ops in
	// the same atomic write. Illegal transitions return InvalidTransitionError
	// and leave the record untouched.
	UpdateStatus(ctx context.Context, id string, status plan.Status, ops ...FieldOp) (*plan.NodeExecution, error)

	// AppendExecutableResponse appends resp to the node's response log
	// without touching the status.
	AppendExecutableResponse(ctx context.Context, id string, resp plan.ExecutableResponse) (*plan.NodeExecution, error)

	// AppendResponseWithStatus appends resp and advances the status in one
	// atomic write. Illegal transitions leave both fields untouched.
	AppendResponseWithStatus(ctx context.Context, id string, resp plan.ExecutableResponse, status plan.Status) (*plan.NodeExecution, error)

	// MarkRetry increments the retry counter and moves the node back to
	// RUNNING for another step attempt.
	MarkRetry(ctx context.Context, id string) (*plan.NodeExecution, error)
}
