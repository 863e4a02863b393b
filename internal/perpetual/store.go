package perpetual

import (
	"context"
	"time"
)

// Store persists perpetual task records. Like the node execution store, all
// mutations are field-scoped so concurrent loops cannot clobber each other,
// and all reads return defensive copies.
type Store interface {
	// Create persists a new record. Creating an ID that already exists is an
	// InvalidRequestError.
	Create(ctx context.Context, record *Record) error

	// Get returns a copy of the record, or NotFoundError.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes the record. Deleting an unknown ID is a NotFoundError.
	Delete(ctx context.Context, id string) error

	// ListIDsByState returns the IDs of all records currently in state.
	ListIDsByState(ctx context.Context, state State) ([]string, error)

	// AppointDelegate assigns the record to a delegate: state ASSIGNED,
	// reason cleared, assignment timestamp set.
	AppointDelegate(ctx context.Context, id, delegateID string, at time.Time) (*Record, error)

	// UpdateUnassignedReason records why assignment failed: state
	// UNASSIGNED, delegate cleared, reason set.
	UpdateUnassignedReason(ctx context.Context, id string, reason UnassignedReason) (*Record, error)

	// MarkToRebalance flags an assigned record for redistribution.
	MarkToRebalance(ctx context.Context, id string) (*Record, error)
}
