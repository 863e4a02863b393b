// Package flowmech defines the public v1 surface of the flowmech execution
// scheduling core: the engine interface, its domain types (plan), the
// wait/notify contracts (waiter), and the supporting interfaces for logging,
// metrics, tracing, events, and alerts.
package flowmech

import (
	"context"

	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/events"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/metrics"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/tracing"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/waiter"
)

// EngineV1 is the node execution engine: it owns the node lifecycle state
// machine and is the only writer of node execution status. All blocking or
// dispatching operations take a context.
type EngineV1 interface {
	// QueueNodeExecution persists the node at QUEUED and schedules one
	// asynchronous dispatch of its step. Queueing an ID that already exists
	// is an InvalidRequestError.
	QueueNodeExecution(ctx context.Context, node *plan.NodeExecution) error

	// QueueTask hands remote work to the executor registered for
	// req.Category, registers wait/notify correlation on the returned task
	// ID, and records the task in the node's response log. Idempotent per
	// (nodeExecutionID, taskID).
	QueueTask(ctx context.Context, nodeExecutionID string, setupAbstractions map[string]string, req *plan.TaskRequest) (string, error)

	// AddExecutableResponse appends resp to the node's response log and, in
	// the same store operation, advances the status unless resp reports no
	// progress (empty status). Any callbackIDs are registered as an AND-join
	// wait that resumes the node when all resolve.
	AddExecutableResponse(ctx context.Context, nodeExecutionID string, status plan.Status, resp plan.ExecutableResponse, callbackIDs []string) error

	// HandleStepResponse runs the node's advisers over the step response and
	// applies the resulting decision.
	HandleStepResponse(ctx context.Context, nodeExecutionID string, stepResponse *plan.StepResponse) error

	// ResumeNodeExecution re-enters the step with the accumulated async
	// responses. When asyncError is true the node goes straight to FAILED.
	ResumeNodeExecution(ctx context.Context, nodeExecutionID string, responses map[string]waiter.ResponseData, asyncError bool) error

	// AbortExecution ends the node at finalStatus, invoking the step's abort
	// hook first. Legal only when the step is abortable and the node's
	// latest executable response is the async-wait shape; otherwise the node
	// is untouched and an InvalidRequestError is returned.
	AbortExecution(ctx context.Context, node *plan.NodeExecution, finalStatus plan.Status) error

	// EventBus returns the bus engine events are emitted on.
	EventBus() events.Bus
	// MetricsRegistryProvider exposes the engine's Prometheus registry.
	MetricsRegistryProvider() metrics.RegistryProvider
	// TracerProvider exposes the engine's OpenTelemetry tracer provider.
	TracerProvider() tracing.TracerProvider
}

// NodeExecutionService is the subset of EngineV1 that remote callers drive
// over the service boundary. Resuming and aborting stay engine-internal; the
// wait engine and operators trigger those in-process. Local and remote
// implementations are interchangeable.
type NodeExecutionService interface {
	QueueNodeExecution(ctx context.Context, node *plan.NodeExecution) error
	QueueTask(ctx context.Context, nodeExecutionID string, setupAbstractions map[string]string, req *plan.TaskRequest) (string, error)
	AddExecutableResponse(ctx context.Context, nodeExecutionID string, status plan.Status, resp plan.ExecutableResponse, callbackIDs []string) error
	HandleStepResponse(ctx context.Context, nodeExecutionID string, stepResponse *plan.StepResponse) error
}
