// Package alert defines the fire-and-forget alert publishing contract used
// by the perpetual task scheduler to surface assignment problems per tenant.
package alert

// Type categorizes an alert.
type Type string

const (
	// TypePerpetualTaskUnassigned is raised when no delegate can take a
	// perpetual task for an account.
	TypePerpetualTaskUnassigned Type = "PerpetualTaskUnassigned"
)

// Payload carries the alert detail. Open and close calls for the same
// condition must carry matching AccountID, Type and TaskType so consumers
// can correlate them.
type Payload struct {
	AccountID string `json:"account_id"`
	TaskType  string `json:"task_type,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Publisher publishes alerts at-least-once. Calls never block the caller's
// critical path and never return errors; delivery problems are the
// publisher's to log.
type Publisher interface {
	OpenAlert(alertType Type, payload Payload)
	CloseAlert(alertType Type, payload Payload)
}
