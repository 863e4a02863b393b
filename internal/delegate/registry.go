package delegate

import (
	"context"
	"sync"
	"time"

	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
)

// Registry is the in-memory delegate fleet, bucketed by account. Liveness is
// heartbeat-based: a delegate whose last heartbeat is older than the
// configured window counts as disconnected without being removed.
type Registry struct {
	mu sync.RWMutex
	// delegates maps accountID -> delegateID -> info.
	delegates map[string]map[string]*Info

	heartbeatWindow time.Duration
	log             fmlog.Logger

	// nowFunc is swapped out in tests for deterministic liveness checks.
	nowFunc func() time.Time
}

// NewRegistry creates a delegate registry with the given heartbeat liveness
// window.
func NewRegistry(heartbeatWindow time.Duration, log fmlog.Logger) *Registry {
	if log == nil {
		panic("delegate.NewRegistry requires a non-nil logger")
	}
	return &Registry{
		delegates:       make(map[string]map[string]*Info),
		heartbeatWindow: heartbeatWindow,
		log:             log.With("component", "DelegateRegistry"),
		nowFunc:         time.Now,
	}
}

var _ Service = (*Registry)(nil)

// Register adds or replaces a delegate and stamps its heartbeat.
func (r *Registry) Register(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fleet, exists := r.delegates[info.AccountID]
	if !exists {
		fleet = make(map[string]*Info)
		r.delegates[info.AccountID] = fleet
	}
	stored := info
	stored.SupportedTaskTypes = append([]string(nil), info.SupportedTaskTypes...)
	if stored.LastHeartbeat.IsZero() {
		stored.LastHeartbeat = r.nowFunc()
	}
	fleet[info.ID] = &stored
	r.log.Infof("Registered delegate '%s' for account '%s'", info.ID, info.AccountID)
}

// Heartbeat refreshes a delegate's liveness timestamp. Unknown delegates are
// ignored; a restart re-registers before heartbeating.
func (r *Registry) Heartbeat(accountID, delegateID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fleet, exists := r.delegates[accountID]; exists {
		if info, ok := fleet[delegateID]; ok {
			info.LastHeartbeat = r.nowFunc()
		}
	}
}

// MarkOffline forces a delegate to count as disconnected by zeroing its
// heartbeat.
func (r *Registry) MarkOffline(accountID, delegateID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fleet, exists := r.delegates[accountID]; exists {
		if info, ok := fleet[delegateID]; ok {
			info.LastHeartbeat = time.Time{}
			r.log.Warnf("Marked delegate '%s' offline for account '%s'", delegateID, accountID)
		}
	}
}

// IsConnected implements Service.
func (r *Registry) IsConnected(accountID, delegateID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fleet, exists := r.delegates[accountID]
	if !exists {
		return false
	}
	info, ok := fleet[delegateID]
	if !ok {
		return false
	}
	return r.isLive(info)
}

// isLive must be called with at least a read lock held.
func (r *Registry) isLive(info *Info) bool {
	if info.LastHeartbeat.IsZero() {
		return false
	}
	return r.nowFunc().Sub(info.LastHeartbeat) <= r.heartbeatWindow
}

// ExecuteValidationTask implements Service. The probe is answered by the
// first connected delegate; its verdict is whether it supports the task
// type. A connected fleet with no supporting delegate is a negative
// verdict, not an error.
func (r *Registry) ExecuteValidationTask(ctx context.Context, accountID string, vtask *ValidationTask) (*ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	fleet, exists := r.delegates[accountID]
	if !exists || len(fleet) == 0 {
		return nil, ErrNoInstalledDelegates
	}

	var connected []*Info
	for _, info := range fleet {
		if r.isLive(info) {
			connected = append(connected, info)
		}
	}
	if len(connected) == 0 {
		return nil, ErrNoAvailableDelegates
	}

	// Prefer a delegate that supports the task type; fall back to any
	// connected delegate reporting a negative verdict.
	for _, info := range connected {
		for _, supported := range info.SupportedTaskTypes {
			if supported == vtask.TaskType {
				return &ValidationResult{DelegateID: info.ID, CanExecute: true}, nil
			}
		}
	}
	return &ValidationResult{
		DelegateID: connected[0].ID,
		CanExecute: false,
		Message:    "no connected delegate supports task type " + vtask.TaskType,
	}, nil
}

// ConnectedDelegates returns the IDs of currently live delegates for an account.
func (r *Registry) ConnectedDelegates(accountID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fleet, exists := r.delegates[accountID]
	if !exists {
		return nil
	}
	var ids []string
	for id, info := range fleet {
		if r.isLive(info) {
			ids = append(ids, id)
		}
	}
	return ids
}
