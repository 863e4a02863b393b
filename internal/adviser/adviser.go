// Package adviser defines the advising contract consulted when a step
// response arrives, the static registry advisers are resolved through, and
// the built-in adviser implementations.
package adviser

import (
	"context"
	"fmt"
	"sync"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
)

// Adviser inspects a step response and optionally decides what happens to
// the node next. A nil response with a nil error means "no opinion"; the
// engine moves on to the node's next configured adviser.
type Adviser interface {
	Advise(ctx context.Context, event plan.AdvisingEvent) (*plan.AdviserResponse, error)
}

// AdviserFunc adapts a function to the Adviser interface.
type AdviserFunc func(ctx context.Context, event plan.AdvisingEvent) (*plan.AdviserResponse, error)

func (f AdviserFunc) Advise(ctx context.Context, event plan.AdvisingEvent) (*plan.AdviserResponse, error) {
	return f(ctx, event)
}

// Registry provides thread-safe registration and retrieval of advisers
// keyed by adviser type.
type Registry struct {
	advisers map[string]Adviser
	mu       sync.RWMutex
}

// NewRegistry creates a registry pre-loaded with the built-in advisers.
func NewRegistry() *Registry {
	r := &Registry{
		advisers: make(map[string]Adviser),
	}
	for name, impl := range builtins() {
		// Built-in names cannot collide at this point.
		r.advisers[name] = impl
	}
	return r
}

// Register associates an adviser type with its implementation, rejecting
// empty names, nil implementations, and duplicates.
func (r *Registry) Register(adviserType string, impl Adviser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if adviserType == "" {
		return fmerrors.NewConfigError("adviser registration error: adviser type cannot be empty", nil)
	}
	if impl == nil {
		return fmerrors.NewConfigError(fmt.Sprintf("adviser registration error for '%s': implementation cannot be nil", adviserType), nil)
	}
	if _, exists := r.advisers[adviserType]; exists {
		return fmerrors.NewConfigError(fmt.Sprintf("adviser registration error: duplicate adviser type '%s'", adviserType), nil)
	}

	r.advisers[adviserType] = impl
	return nil
}

// Get retrieves the adviser for a given type, or a RegistryEntryNotFoundError.
func (r *Registry) Get(adviserType string) (Adviser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, exists := r.advisers[adviserType]
	if !exists {
		return nil, fmerrors.NewRegistryEntryNotFoundError("adviser", adviserType)
	}
	return impl, nil
}

// List returns the names of all registered adviser types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.advisers))
	for name := range r.advisers {
		names = append(names, name)
	}
	return names
}
