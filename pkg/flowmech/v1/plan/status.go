// Package plan defines the public domain types shared between the flowmech
// engine, its stores, and the remote procedure boundary: node execution
// records, execution statuses and their legal transitions, executable
// responses, step responses, task requests, and adviser decisions.
package plan

// Status represents the lifecycle state of a node execution.
type Status string

const (
	// StatusQueued is the initial status of a persisted node execution.
	StatusQueued Status = "QUEUED"
	// StatusRunning means the step logic is being invoked.
	StatusRunning Status = "RUNNING"
	// StatusAsyncWaiting means the node is suspended on external work and
	// will only progress when its registered callback IDs are all resolved.
	StatusAsyncWaiting Status = "ASYNC_WAITING"
	// StatusExecutingAdviser means a step response arrived and the node's
	// advisers are deciding what happens next.
	StatusExecutingAdviser Status = "EXECUTING_ADVISER"

	// Terminal statuses.
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusAborted   Status = "ABORTED"
	// StatusSkipped marks a node whose step declined to run.
	StatusSkipped Status = "SKIPPED"

	// StatusNoOp is a sentinel callers pass to AddExecutableResponse to
	// append a response without touching the node's status. It is never
	// stored on a node and takes no part in the transition machine.
	StatusNoOp Status = "NO_OP"
)

// IsTerminal reports whether s is a final status from which no further
// transition is legal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusSkipped:
		return true
	}
	return false
}

// legalTransitions is the monotonic state machine for node executions.
// Retry is the only edge that re-enters RUNNING after advising.
var legalTransitions = map[Status][]Status{
	StatusQueued:  {StatusRunning, StatusAborted, StatusSkipped},
	StatusRunning: {StatusAsyncWaiting, StatusExecutingAdviser, StatusSucceeded, StatusFailed, StatusAborted, StatusSkipped},
	StatusAsyncWaiting: {
		StatusAsyncWaiting, // additional async responses while already waiting
		StatusRunning,      // resume
		StatusExecutingAdviser,
		StatusSucceeded, StatusFailed, StatusAborted,
	},
	StatusExecutingAdviser: {StatusRunning, StatusSucceeded, StatusFailed, StatusAborted, StatusSkipped},
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
