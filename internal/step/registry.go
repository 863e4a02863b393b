package step

import (
	"fmt"
	"sync"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
)

// Registry provides thread-safe registration and retrieval of step
// implementations keyed by step type. It is populated at process start by
// the application wiring the engine.
type Registry struct {
	steps map[string]Step
	mu    sync.RWMutex
}

// NewRegistry creates a new, empty step registry.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
	}
}

// Register associates a step type with its implementation. It enforces that
// step types and implementations are valid and prevents duplicate
// registrations.
func (r *Registry) Register(stepType string, impl Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stepType == "" {
		return fmerrors.NewConfigError("step registration error: step type cannot be empty", nil)
	}
	if impl == nil {
		return fmerrors.NewConfigError(fmt.Sprintf("step registration error for '%s': implementation cannot be nil", stepType), nil)
	}
	if _, exists := r.steps[stepType]; exists {
		return fmerrors.NewConfigError(fmt.Sprintf("step registration error: duplicate step type '%s'", stepType), nil)
	}

	r.steps[stepType] = impl
	return nil
}

// Get retrieves the implementation for a given step type.
// If the step type is not registered, it returns a RegistryEntryNotFoundError.
func (r *Registry) Get(stepType string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, exists := r.steps[stepType]
	if !exists {
		return nil, fmerrors.NewRegistryEntryNotFoundError("step", stepType)
	}
	return impl, nil
}

// List returns the names of all registered step types.
// The order of names in the returned slice is not guaranteed.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	return names
}
