package perpetual

import (
	"context"
	"fmt"
	"sync"
	"time"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
)

// MemoryStore is the reference in-memory Store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory perpetual task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

var _ Store = (*MemoryStore)(nil)

// Create persists a new record, defaulting its state to UNASSIGNED.
func (s *MemoryStore) Create(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return fmerrors.NewValidationError("perpetual task record must have an id", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return fmerrors.NewInvalidRequestError(fmt.Sprintf("perpetual task record '%s' already exists", record.ID), nil)
	}
	stored := record.Clone()
	if stored.State == "" {
		stored.State = StateUnassigned
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.records[record.ID] = stored
	return nil
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, exists := s.records[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("perpetual task record", id)
	}
	return record.Clone(), nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		return fmerrors.NewNotFoundError("perpetual task record", id)
	}
	delete(s.records, id)
	return nil
}

// ListIDsByState returns the IDs of records currently in state.
func (s *MemoryStore) ListIDsByState(ctx context.Context, state State) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, record := range s.records {
		if record.State == state {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AppointDelegate assigns the record to a delegate.
func (s *MemoryStore) AppointDelegate(ctx context.Context, id, delegateID string, at time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("perpetual task record", id)
	}
	record.State = StateAssigned
	record.DelegateID = delegateID
	record.UnassignedReason = ""
	record.LastAssignedAt = at
	return record.Clone(), nil
}

// UpdateUnassignedReason records why assignment failed.
func (s *MemoryStore) UpdateUnassignedReason(ctx context.Context, id string, reason UnassignedReason) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("perpetual task record", id)
	}
	record.State = StateUnassigned
	record.DelegateID = ""
	record.UnassignedReason = reason
	return record.Clone(), nil
}

// MarkToRebalance flags an assigned record for redistribution.
func (s *MemoryStore) MarkToRebalance(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[id]
	if !exists {
		return nil, fmerrors.NewNotFoundError("perpetual task record", id)
	}
	record.State = StateToRebalance
	return record.Clone(), nil
}
