package boundary

import "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"

// QueueNodeExecutionRequest asks the engine to persist and dispatch a node
// execution.
type QueueNodeExecutionRequest struct {
	NodeExecution *plan.NodeExecution `json:"node_execution"`
}

// QueueNodeExecutionResponse acknowledges the queue request.
type QueueNodeExecutionResponse struct {
	NodeExecutionID string `json:"node_execution_id"`
}

// QueueTaskRequest asks the engine to hand remote work to a task executor on
// behalf of a node execution.
type QueueTaskRequest struct {
	NodeExecutionID   string            `json:"node_execution_id"`
	SetupAbstractions map[string]string `json:"setup_abstractions,omitempty"`
	Task              *plan.TaskRequest `json:"task"`
}

// QueueTaskResponse returns the correlation ID the remote pool will resolve.
type QueueTaskResponse struct {
	TaskID string `json:"task_id"`
}

// AddExecutableResponseRequest appends a response to a node execution's log,
// optionally advancing its status and registering callback waits.
type AddExecutableResponseRequest struct {
	NodeExecutionID string                  `json:"node_execution_id"`
	Status          plan.Status             `json:"status,omitempty"`
	Response        plan.ExecutableResponse `json:"response"`
	CallbackIDs     []string                `json:"callback_ids,omitempty"`
}

// AddExecutableResponseResponse acknowledges the append.
type AddExecutableResponseResponse struct{}

// HandleStepResponseRequest delivers a step's terminal verdict.
type HandleStepResponseRequest struct {
	NodeExecutionID string             `json:"node_execution_id"`
	StepResponse    *plan.StepResponse `json:"step_response"`
}

// HandleStepResponseResponse acknowledges the delivery.
type HandleStepResponseResponse struct{}
