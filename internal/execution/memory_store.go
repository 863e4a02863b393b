package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"
)

// nowFunc is swapped out in tests for deterministic timestamps.
var nowFunc = time.Now

// MemoryStore is the reference in-memory Store implementation. A single
// RWMutex guards the record map; every read hands back a deep copy so
// callers can never mutate persisted state through aliasing.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*plan.NodeExecution
}

// NewMemoryStore creates an empty in-memory node execution store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*plan.NodeExecution),
	}
}

var _ Store = (*MemoryStore)(nil)

// Save persists a new node execution at its current status.
func (s *MemoryStore) Save(ctx context.Context, node *plan.NodeExecution) error {
	if node == nil || node.ID == "" {
		return fmerrors.NewValidationError("node execution must have an id", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[node.ID]; exists {
		return fmerrors.NewInvalidRequestError(fmt.Sprintf("node execution '%s' already exists", node.ID), nil)
	}
	s.nodes[node.ID] = node.Clone()
	return nil
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(ctx context.Context, id string) (*plan.NodeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, exists := s.nodes[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("node execution", id)
	}
	return node.Clone(), nil
}

// UpdateStatus applies a validated status transition plus any field ops.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status plan.Status, ops ...FieldOp) (*plan.NodeExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, exists := s.nodes[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("node execution", id)
	}
	if !node.Status.CanTransitionTo(status) {
		return nil, fmerrors.NewInvalidTransitionError(id, string(node.Status), string(status))
	}
	node.Status = status
	if status == plan.StatusRunning && node.StartedAt.IsZero() {
		node.StartedAt = nowFunc()
	}
	for _, op := range ops {
		op(node)
	}
	return node.Clone(), nil
}

// AppendExecutableResponse appends to the response log only.
func (s *MemoryStore) AppendExecutableResponse(ctx context.Context, id string, resp plan.ExecutableResponse) (*plan.NodeExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, exists := s.nodes[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("node execution", id)
	}
	node.ExecutableResponses = append(node.ExecutableResponses, resp)
	return node.Clone(), nil
}

// AppendResponseWithStatus appends to the log and advances status atomically.
// The transition is validated before either field is touched.
func (s *MemoryStore) AppendResponseWithStatus(ctx context.Context, id string, resp plan.ExecutableResponse, status plan.Status) (*plan.NodeExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, exists := s.nodes[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("node execution", id)
	}
	if !node.Status.CanTransitionTo(status) {
		return nil, fmerrors.NewInvalidTransitionError(id, string(node.Status), string(status))
	}
	node.ExecutableResponses = append(node.ExecutableResponses, resp)
	node.Status = status
	return node.Clone(), nil
}

// MarkRetry re-arms the node for another step attempt.
func (s *MemoryStore) MarkRetry(ctx context.Context, id string) (*plan.NodeExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, exists := s.nodes[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("node execution", id)
	}
	if !node.Status.CanTransitionTo(plan.StatusRunning) {
		return nil, fmerrors.NewInvalidTransitionError(id, string(node.Status), string(plan.StatusRunning))
	}
	node.RetryCount++
	node.Status = plan.StatusRunning
	return node.Clone(), nil
}
