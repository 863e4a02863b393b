package errors

import (
	"errors"
	"fmt"
)

// --- Flowmech Core Error Types ---

// ConfigError represents an error encountered during the loading, parsing,
// or validation of the service configuration or engine options, or while
// resolving a registry entry that must be wired at process start (task
// executors, advisers, steps, perpetual task clients).
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (e.g., service config structure,
// schema version, request payload) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// InvalidRequestError signifies a caller asked the engine to violate one of
// its invariants: aborting a node that is not suspended on async work,
// queueing a duplicate node execution, or re-applying a terminal transition.
// These propagate loudly to whoever initiated the operation.
type InvalidRequestError struct {
	Message string
	Cause   error
}

func NewInvalidRequestError(message string, cause error) *InvalidRequestError {
	return &InvalidRequestError{Message: message, Cause: cause}
}
func (e *InvalidRequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid request: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid request: %s", e.Message)
}
func (e *InvalidRequestError) Unwrap() error { return e.Cause }

// IsInvalidRequest checks if an error is an InvalidRequestError using errors.As.
func IsInvalidRequest(err error) bool {
	var reqErr *InvalidRequestError
	return errors.As(err, &reqErr)
}

// InvalidTransitionError indicates an attempt to move a node execution to a
// status the state machine does not permit from its current status.
type InvalidTransitionError struct {
	NodeExecutionID string
	From            string
	To              string
}

func NewInvalidTransitionError(nodeExecutionID, from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{NodeExecutionID: nodeExecutionID, From: from, To: to}
}
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for node execution '%s': %s -> %s", e.NodeExecutionID, e.From, e.To)
}

// NotFoundError indicates that a referenced entity (node execution, perpetual
// task record, wait entry) does not exist in its store.
type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound checks if an error is a NotFoundError using errors.As.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// RegistryEntryNotFoundError indicates that a runtime tag (task category,
// adviser type, step type, perpetual task type) has no registered
// implementation. Registries are assembled at process start, so an unknown
// tag is a configuration problem of the node or record carrying it.
type RegistryEntryNotFoundError struct {
	Registry string // e.g., "task executor", "adviser", "step"
	Entry    string
}

func NewRegistryEntryNotFoundError(registry, entry string) *RegistryEntryNotFoundError {
	return &RegistryEntryNotFoundError{Registry: registry, Entry: entry}
}
func (e *RegistryEntryNotFoundError) Error() string {
	return fmt.Sprintf("no %s registered for type: %s", e.Registry, e.Entry)
}

// TransientError classifies a failure as recoverable: the record or node is
// left in its current state so the next poll cycle or retry naturally
// re-attempts the operation.
type TransientError struct {
	Message string
	Cause   error
}

func NewTransientError(message string, cause error) *TransientError {
	return &TransientError{Message: message, Cause: cause}
}
func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("transient error: %s", e.Message)
}
func (e *TransientError) Unwrap() error { return e.Cause }

// IsTransient checks if an error is a TransientError using errors.As.
func IsTransient(err error) bool {
	var trErr *TransientError
	return errors.As(err, &trErr)
}
