package plan

import "time"

// NodeExecution is the persistent record of one node's run within a plan
// execution. The ExecutableResponses log is append-only; Status only moves
// along the transitions defined in status.go.
type NodeExecution struct {
	ID              string   `json:"id"`
	PlanExecutionID string   `json:"plan_execution_id"`
	Ambiance        Ambiance `json:"ambiance"`

	// StepType selects the registered step implementation; FacilitatorType
	// selects how it runs; AdviserTypes are consulted in order when a step
	// response arrives.
	StepType        string   `json:"step_type"`
	FacilitatorType string   `json:"facilitator_type,omitempty"`
	AdviserTypes    []string `json:"adviser_types,omitempty"`

	Status Status `json:"status"`

	// ResolvedParameters is the opaque serialized parameter blob for the
	// step. The engine never inspects it.
	ResolvedParameters []byte `json:"resolved_parameters,omitempty"`

	ExecutableResponses []ExecutableResponse `json:"executable_responses,omitempty"`

	FailureMessage string `json:"failure_message,omitempty"`
	RetryCount     int    `json:"retry_count"`

	// NextNodeID and RollbackNodeID are plan-graph linkage resolved by the
	// Navigator; zero values mean the plan ends here.
	NextNodeID     string `json:"next_node_id,omitempty"`
	RollbackNodeID string `json:"rollback_node_id,omitempty"`

	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// LatestExecutableResponse returns the most recently appended response, or
// nil when the log is empty.
func (n *NodeExecution) LatestExecutableResponse() *ExecutableResponse {
	if len(n.ExecutableResponses) == 0 {
		return nil
	}
	return &n.ExecutableResponses[len(n.ExecutableResponses)-1]
}

// Clone returns a deep copy of the node execution.
func (n *NodeExecution) Clone() *NodeExecution {
	out := *n
	out.Ambiance = n.Ambiance.Clone()
	if n.AdviserTypes != nil {
		out.AdviserTypes = append([]string(nil), n.AdviserTypes...)
	}
	if n.ResolvedParameters != nil {
		out.ResolvedParameters = append([]byte(nil), n.ResolvedParameters...)
	}
	if n.ExecutableResponses != nil {
		out.ExecutableResponses = make([]ExecutableResponse, len(n.ExecutableResponses))
		for i, resp := range n.ExecutableResponses {
			out.ExecutableResponses[i] = cloneResponse(resp)
		}
	}
	return &out
}

func cloneResponse(r ExecutableResponse) ExecutableResponse {
	out := ExecutableResponse{Kind: r.Kind}
	if r.Async != nil {
		a := *r.Async
		a.CallbackIDs = append([]string(nil), r.Async.CallbackIDs...)
		out.Async = &a
	}
	if r.Task != nil {
		t := *r.Task
		out.Task = &t
	}
	if r.Children != nil {
		c := *r.Children
		c.ChildNodeIDs = append([]string(nil), r.Children.ChildNodeIDs...)
		out.Children = &c
	}
	if r.Sync != nil {
		s := *r.Sync
		out.Sync = &s
	}
	return out
}
