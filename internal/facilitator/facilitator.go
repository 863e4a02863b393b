// Package facilitator decides how a step runs before it runs: synchronously
// in-process, suspended on external callbacks, or delegated to a remote task
// pool. Facilitators are resolved through a static registry keyed by
// facilitator type, with a default per node when none is configured.
package facilitator

import (
	"context"
	"fmt"
	"sync"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
)

// Mode is the execution mode a facilitator selects.
type Mode string

const (
	ModeSync  Mode = "SYNC"
	ModeAsync Mode = "ASYNC"
	ModeTask  Mode = "TASK"
)

// Built-in facilitator type names.
const (
	TypeSync  = "SYNC"
	TypeAsync = "ASYNC"
	TypeTask  = "TASK"
)

// Facilitator inspects the node before its step executes and selects a mode.
type Facilitator interface {
	Facilitate(ctx context.Context, node *plan.NodeExecution) (Mode, error)
}

// FacilitatorFunc adapts a function to the Facilitator interface.
type FacilitatorFunc func(ctx context.Context, node *plan.NodeExecution) (Mode, error)

func (f FacilitatorFunc) Facilitate(ctx context.Context, node *plan.NodeExecution) (Mode, error) {
	return f(ctx, node)
}

func fixedMode(mode Mode) Facilitator {
	return FacilitatorFunc(func(ctx context.Context, node *plan.NodeExecution) (Mode, error) {
		return mode, nil
	})
}

// Registry provides thread-safe registration and retrieval of facilitators
// keyed by facilitator type.
type Registry struct {
	facilitators map[string]Facilitator
	mu           sync.RWMutex
}

// NewRegistry creates a registry pre-loaded with the built-in fixed-mode
// facilitators.
func NewRegistry() *Registry {
	return &Registry{
		facilitators: map[string]Facilitator{
			TypeSync:  fixedMode(ModeSync),
			TypeAsync: fixedMode(ModeAsync),
			TypeTask:  fixedMode(ModeTask),
		},
	}
}

// Register associates a facilitator type with its implementation, rejecting
// empty names, nil implementations, and duplicates.
func (r *Registry) Register(facilitatorType string, impl Facilitator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if facilitatorType == "" {
		return fmerrors.NewConfigError("facilitator registration error: facilitator type cannot be empty", nil)
	}
	if impl == nil {
		return fmerrors.NewConfigError(fmt.Sprintf("facilitator registration error for '%s': implementation cannot be nil", facilitatorType), nil)
	}
	if _, exists := r.facilitators[facilitatorType]; exists {
		return fmerrors.NewConfigError(fmt.Sprintf("facilitator registration error: duplicate facilitator type '%s'", facilitatorType), nil)
	}

	r.facilitators[facilitatorType] = impl
	return nil
}

// Get retrieves the facilitator for a given type, or a RegistryEntryNotFoundError.
func (r *Registry) Get(facilitatorType string) (Facilitator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, exists := r.facilitators[facilitatorType]
	if !exists {
		return nil, fmerrors.NewRegistryEntryNotFoundError("facilitator", facilitatorType)
	}
	return impl, nil
}

// Resolve returns the facilitator for the node, defaulting to SYNC when the
// node does not name one.
func (r *Registry) Resolve(node *plan.NodeExecution) (Facilitator, error) {
	facilitatorType := node.FacilitatorType
	if facilitatorType == "" {
		facilitatorType = TypeSync
	}
	return r.Get(facilitatorType)
}
