package perpetual

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowmech-labs/flowmech/internal/delegate"
	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
)

// ServiceClient builds the capability validation task for one perpetual task
// type from a record's client context. One client is registered per task
// type at process start.
type ServiceClient interface {
	GetValidationTask(ctx context.Context, clientContext ClientContext, accountID string) (*delegate.ValidationTask, error)
}

// ServiceClientFunc adapts a function to the ServiceClient interface.
type ServiceClientFunc func(ctx context.Context, clientContext ClientContext, accountID string) (*delegate.ValidationTask, error)

func (f ServiceClientFunc) GetValidationTask(ctx context.Context, clientContext ClientContext, accountID string) (*delegate.ValidationTask, error) {
	return f(ctx, clientContext, accountID)
}

// ClientRegistry provides thread-safe registration and retrieval of service
// clients keyed by perpetual task type.
type ClientRegistry struct {
	clients map[string]ServiceClient
	mu      sync.RWMutex
}

// NewClientRegistry creates a new, empty service client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]ServiceClient),
	}
}

// Register associates a task type with its client, rejecting empty types,
// nil clients, and duplicates.
func (r *ClientRegistry) Register(taskType string, client ServiceClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if taskType == "" {
		return fmerrors.NewConfigError("service client registration error: task type cannot be empty", nil)
	}
	if client == nil {
		return fmerrors.NewConfigError(fmt.Sprintf("service client registration error for '%s': client cannot be nil", taskType), nil)
	}
	if _, exists := r.clients[taskType]; exists {
		return fmerrors.NewConfigError(fmt.Sprintf("service client registration error: duplicate task type '%s'", taskType), nil)
	}

	r.clients[taskType] = client
	return nil
}

// Get retrieves the client for a task type, or a RegistryEntryNotFoundError.
func (r *ClientRegistry) Get(taskType string) (ServiceClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[taskType]
	if !exists {
		return nil, fmerrors.NewRegistryEntryNotFoundError("perpetual task service client", taskType)
	}
	return client, nil
}
