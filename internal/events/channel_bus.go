package events

import (
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/events"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
)

// ChannelEventBus implements events.Bus over a buffered channel. Emission is
// non-blocking: the engine's hot path never waits on a slow listener, and
// events that do not fit the buffer are dropped with a warning.
type ChannelEventBus struct {
	channel chan events.Event
	log     fmlog.Logger
}

// NewChannelEventBus creates a bus with the given buffer size. A non-positive
// size falls back to a default. Panics on a nil logger.
func NewChannelEventBus(bufferSize int, log fmlog.Logger) *ChannelEventBus {
	const defaultBufferSize = 100
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		panic("ChannelEventBus requires a non-nil logger")
	}

	bus := &ChannelEventBus{
		channel: make(chan events.Event, bufferSize),
		log:     log.With("component", "ChannelEventBus"),
	}
	bus.log.Debugf("ChannelEventBus initialized with buffer size %d", bufferSize)
	return bus
}

// Emit implements events.Bus. A full buffer drops the event rather than
// blocking the emitter.
func (c *ChannelEventBus) Emit(event events.Event) {
	select {
	case c.channel <- event:
		c.log.Debugf("Emitted event type '%s'", event.Type)
	default:
		c.log.Warnf("Event channel buffer full, dropping event type '%s'", event.Type)
	}
}

// GetChannel exposes the read side for in-process listeners. Not part of the
// events.Bus interface.
func (c *ChannelEventBus) GetChannel() <-chan events.Event {
	return c.channel
}

// Close closes the channel, signalling consumers that no more events follow.
func (c *ChannelEventBus) Close() {
	c.log.Debugf("Closing ChannelEventBus channel.")
	close(c.channel)
}

var _ events.Bus = (*ChannelEventBus)(nil)
