package plan

import "time"

// FailureInfo carries the failure detail of a step response.
type FailureInfo struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// StepResponse is what a step reports when its work finishes, successfully
// or not. Status must be one of the terminal statuses.
type StepResponse struct {
	Status      Status       `json:"status"`
	FailureInfo *FailureInfo `json:"failure_info,omitempty"`
}

// FailureMessage returns the failure message, or empty when none is set.
func (r *StepResponse) FailureMessage() string {
	if r.FailureInfo == nil {
		return ""
	}
	return r.FailureInfo.Message
}

// TaskCategory selects a registered task executor.
type TaskCategory string

const (
	// TaskCategoryDelegate routes work to the remote delegate pool.
	TaskCategoryDelegate TaskCategory = "DELEGATE_TASK_V1"
	// TaskCategoryLocal routes work to an in-process executor.
	TaskCategoryLocal TaskCategory = "LOCAL_TASK"
)

// TaskRequest describes remote work handed to a task executor. Parameters
// are an opaque payload for the remote pool; the engine never inspects them.
type TaskRequest struct {
	Category   TaskCategory  `json:"category"`
	Type       string        `json:"type"`
	Parameters []byte        `json:"parameters,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}
