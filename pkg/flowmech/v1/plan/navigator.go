package plan

import "context"

// Navigator resolves plan-graph linkage for the engine. Plan compilation
// lives outside this module; the engine only asks what comes after a node
// ends. A (nil, nil) return means the plan has no node in that direction.
type Navigator interface {
	// NextNodeExecution returns the node execution to queue after current
	// ends successfully.
	NextNodeExecution(ctx context.Context, current *NodeExecution) (*NodeExecution, error)
	// RollbackNodeExecution returns the node execution to queue when an
	// adviser decides to roll back from current.
	RollbackNodeExecution(ctx context.Context, current *NodeExecution) (*NodeExecution, error)
}
