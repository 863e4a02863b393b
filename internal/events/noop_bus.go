package events

import "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/events"

// NoOpEventBus discards every event. It is the default bus when no event
// handling is configured, so emitters never have to nil-check.
type NoOpEventBus struct{}

// NewNoOpEventBus returns a bus that drops everything.
func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

// Emit implements events.Bus.
func (n *NoOpEventBus) Emit(event events.Event) {}

var _ events.Bus = (*NoOpEventBus)(nil)
