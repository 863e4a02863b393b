package plan

import "time"

// AdviseType is the decision an adviser hands back to the engine.
type AdviseType string

const (
	// AdviseProceed continues the plan with the step's own status.
	AdviseProceed AdviseType = "PROCEED"
	// AdviseRetry re-runs the step, bounded by the adviser's retry budget.
	AdviseRetry AdviseType = "RETRY"
	// AdviseMarkSuccess forces the node to SUCCEEDED and continues the plan.
	AdviseMarkSuccess AdviseType = "MARK_SUCCESS"
	// AdviseRollback ends the node with the step's status and queues the
	// designated rollback node.
	AdviseRollback AdviseType = "ROLLBACK"
	// AdviseEndPlan ends the node and stops the plan.
	AdviseEndPlan AdviseType = "END_PLAN"
)

// AdviserResponse is the outcome of consulting one adviser. A nil response
// from Advise means the adviser has no opinion and the next one is asked.
type AdviserResponse struct {
	Type AdviseType `json:"type"`
	// RetryWait delays the re-dispatch for AdviseRetry.
	RetryWait time.Duration `json:"retry_wait,omitempty"`
}

// AdvisingEvent is the input to an adviser: the node as persisted plus the
// step response that just arrived.
type AdvisingEvent struct {
	NodeExecution *NodeExecution
	StepResponse  *StepResponse
}
