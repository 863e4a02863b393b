// Package perpetual implements the perpetual task scheduler: long-lived task
// records, their assignment state machine, and the two polling loops that
// keep every record assigned to a connected, capable delegate.
package perpetual

import "time"

// State is the assignment state of a perpetual task record.
type State string

const (
	// StateUnassigned means the record needs a delegate.
	StateUnassigned State = "TASK_UNASSIGNED"
	// StateAssigned means a delegate holds the task.
	StateAssigned State = "TASK_ASSIGNED"
	// StateToRebalance means the record should be moved off its current
	// delegate if that delegate is gone.
	StateToRebalance State = "TASK_TO_REBALANCE"
)

// UnassignedReason explains why an assignment attempt left a record
// unassigned.
type UnassignedReason string

const (
	// ReasonNoDelegateInstalled: the account has no delegates at all.
	ReasonNoDelegateInstalled UnassignedReason = "NO_DELEGATE_INSTALLED"
	// ReasonNoDelegateAvailable: delegates exist but none is connected.
	ReasonNoDelegateAvailable UnassignedReason = "NO_DELEGATE_AVAILABLE"
	// ReasonNoEligibleDelegates: a delegate answered the capability probe
	// with a negative verdict.
	ReasonNoEligibleDelegates UnassignedReason = "NO_ELIGIBLE_DELEGATES"
)

// ClientContext is the client-supplied parameter bag a service client builds
// the validation task from.
type ClientContext struct {
	Params             map[string]string `json:"params,omitempty"`
	LastContextUpdated time.Time         `json:"last_context_updated,omitempty"`
}

// Record is one perpetual task.
type Record struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	// Type selects the registered service client.
	Type  string `json:"type"`
	State State  `json:"state"`
	// DelegateID is set while the record is assigned.
	DelegateID       string           `json:"delegate_id,omitempty"`
	ClientContext    ClientContext    `json:"client_context,omitempty"`
	UnassignedReason UnassignedReason `json:"unassigned_reason,omitempty"`
	LastAssignedAt   time.Time        `json:"last_assigned_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	if r.ClientContext.Params != nil {
		params := make(map[string]string, len(r.ClientContext.Params))
		for k, v := range r.ClientContext.Params {
			params[k] = v
		}
		out.ClientContext.Params = params
	}
	return &out
}
