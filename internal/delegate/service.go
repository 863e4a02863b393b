// Package delegate tracks the remote worker fleet per account: registration,
// heartbeat-based liveness, and the synchronous capability validation the
// perpetual task scheduler runs before assigning work.
package delegate

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors driving the scheduler's assignment outcome branches.
var (
	// ErrNoInstalledDelegates means the account has no delegates registered at all.
	ErrNoInstalledDelegates = errors.New("no delegates installed for account")
	// ErrNoAvailableDelegates means delegates exist but none is currently connected.
	ErrNoAvailableDelegates = errors.New("no delegates available for account")
)

// Info describes one registered delegate.
type Info struct {
	ID        string
	AccountID string
	// SupportedTaskTypes lists the perpetual task types this delegate can
	// validate and run.
	SupportedTaskTypes []string
	LastHeartbeat      time.Time
}

// ValidationTask is the capability probe built by a perpetual task service
// client. Parameters are opaque to the delegate layer.
type ValidationTask struct {
	TaskType   string
	Parameters []byte
	Timeout    time.Duration
}

// ValidationResult is the verdict of a capability probe. DelegateID names
// the delegate that answered; CanExecute is its verdict.
type ValidationResult struct {
	DelegateID string
	CanExecute bool
	Message    string
}

// Service is what the perpetual task scheduler depends on.
type Service interface {
	// IsConnected reports whether the delegate's last heartbeat is within
	// the liveness window.
	IsConnected(accountID, delegateID string) bool
	// ExecuteValidationTask runs the capability probe synchronously against
	// the account's fleet. It returns ErrNoInstalledDelegates when the
	// account has no delegates and ErrNoAvailableDelegates when none is
	// connected; any other error is a probe failure.
	ExecuteValidationTask(ctx context.Context, accountID string, task *ValidationTask) (*ValidationResult, error)
}
