package events

import "time"

// EventType represents the type of a flowmech engine event.
type EventType string

// Standard Flowmech Event Types
const (
	NodeQueued        EventType = "NodeQueued"        // Node execution persisted and dispatched
	NodeResumed       EventType = "NodeResumed"       // Async responses delivered back to the step
	NodeStatusChanged EventType = "NodeStatusChanged" // Any status transition applied
	NodeEnded         EventType = "NodeEnded"         // Terminal status set
	TaskQueued        EventType = "TaskQueued"        // Remote task handed to an executor
	PlanEnded         EventType = "PlanEnded"         // Adviser or failure ended the plan
	AssignmentChanged EventType = "AssignmentChanged" // Perpetual task assigned or unassigned
	AlertRaised       EventType = "AlertRaised"       // Alert opened for an account
	AnomalyDetected   EventType = "AnomalyDetected"   // Duplicate or late callback dropped
)

// Event represents a significant occurrence within the flowmech engine.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`
	// Timestamp marks when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// PlanExecutionID identifies the plan context, if applicable.
	PlanExecutionID string `json:"plan_execution_id,omitempty"`
	// NodeExecutionID identifies the node execution context, if applicable.
	NodeExecutionID string `json:"node_execution_id,omitempty"`
	// AccountID identifies the tenant context for scheduler events, if applicable.
	AccountID string `json:"account_id,omitempty"`
	// Payload contains event-specific data. Resolved step parameters and other
	// potentially sensitive blobs MUST NOT be included in the payload.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus defines the interface for publishing events within the flowmech engine.
// Implementations could include logging, sending to message queues, etc.
type Bus interface {
	// Emit publishes an event to the bus.
	// Implementations should be non-blocking or handle blocking carefully
	// to avoid slowing down the engine core.
	Emit(event Event)
}
