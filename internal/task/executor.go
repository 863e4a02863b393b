// Package task defines the task executor contract the engine queues remote
// work through, and the static registry executors are resolved from by task
// category.
package task

import (
	"context"
	"fmt"
	"sync"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/waiter"
)

// Executor hands work to a remote pool. QueueTask is non-blocking: it
// returns as soon as the work is accepted, with the task ID the remote pool
// will eventually resolve through the wait/notify engine.
type Executor interface {
	QueueTask(ctx context.Context, setupAbstractions map[string]string, req *plan.TaskRequest) (string, error)
}

// SyncExecutor is the optional capability of executors that can run a task
// to completion within the caller's deadline. The perpetual scheduler uses
// this for bounded capability probes.
type SyncExecutor interface {
	ExecuteTaskSync(ctx context.Context, setupAbstractions map[string]string, req *plan.TaskRequest) (waiter.ResponseData, error)
}

// Registry provides thread-safe registration and retrieval of task
// executors keyed by task category.
type Registry struct {
	executors map[plan.TaskCategory]Executor
	mu        sync.RWMutex
}

// NewRegistry creates a new, empty task executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[plan.TaskCategory]Executor),
	}
}

// Register associates a task category with its executor, rejecting empty
// categories, nil executors, and duplicates.
func (r *Registry) Register(category plan.TaskCategory, exec Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category == "" {
		return fmerrors.NewConfigError("task executor registration error: category cannot be empty", nil)
	}
	if exec == nil {
		return fmerrors.NewConfigError(fmt.Sprintf("task executor registration error for '%s': executor cannot be nil", category), nil)
	}
	if _, exists := r.executors[category]; exists {
		return fmerrors.NewConfigError(fmt.Sprintf("task executor registration error: duplicate category '%s'", category), nil)
	}

	r.executors[category] = exec
	return nil
}

// Get retrieves the executor for a given category, or a RegistryEntryNotFoundError.
func (r *Registry) Get(category plan.TaskCategory) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, exists := r.executors[category]
	if !exists {
		return nil, fmerrors.NewRegistryEntryNotFoundError("task executor", string(category))
	}
	return exec, nil
}

// List returns all registered task categories.
func (r *Registry) List() []plan.TaskCategory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]plan.TaskCategory, 0, len(r.executors))
	for category := range r.executors {
		categories = append(categories, category)
	}
	return categories
}
