// Package alert provides the default alert publisher implementations: a
// log-backed publisher for production wiring and a recording fake for tests.
package alert

import (
	"sync"
	"time"

	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/alert"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/events"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
)

// LogPublisher writes alerts to the structured log and mirrors opens onto
// the event bus. Fire-and-forget: it never blocks and never fails the caller.
type LogPublisher struct {
	log fmlog.Logger
	bus events.Bus
}

// NewLogPublisher creates a publisher. bus may be nil when events are not wired.
func NewLogPublisher(log fmlog.Logger, bus events.Bus) *LogPublisher {
	if log == nil {
		panic("alert.NewLogPublisher requires a non-nil logger")
	}
	return &LogPublisher{
		log: log.With("component", "AlertPublisher"),
		bus: bus,
	}
}

var _ alert.Publisher = (*LogPublisher)(nil)

// OpenAlert implements alert.Publisher.
func (p *LogPublisher) OpenAlert(alertType alert.Type, payload alert.Payload) {
	p.log.Warnf("Alert opened: type=%s account=%s task_type=%s record=%s: %s",
		alertType, payload.AccountID, payload.TaskType, payload.RecordID, payload.Message)
	if p.bus != nil {
		p.bus.Emit(events.Event{
			Type:      events.AlertRaised,
			Timestamp: time.Now(),
			AccountID: payload.AccountID,
			Payload: map[string]interface{}{
				"alert_type": string(alertType),
				"task_type":  payload.TaskType,
				"record_id":  payload.RecordID,
				"message":    payload.Message,
			},
		})
	}
}

// CloseAlert implements alert.Publisher.
func (p *LogPublisher) CloseAlert(alertType alert.Type, payload alert.Payload) {
	p.log.Infof("Alert closed: type=%s account=%s task_type=%s record=%s",
		alertType, payload.AccountID, payload.TaskType, payload.RecordID)
}

// Recorded is one captured publisher call.
type Recorded struct {
	Opened  bool
	Type    alert.Type
	Payload alert.Payload
}

// RecordingPublisher captures alert calls for assertions in tests.
type RecordingPublisher struct {
	mu    sync.Mutex
	calls []Recorded
}

// NewRecordingPublisher creates an empty recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

var _ alert.Publisher = (*RecordingPublisher)(nil)

func (p *RecordingPublisher) OpenAlert(alertType alert.Type, payload alert.Payload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Recorded{Opened: true, Type: alertType, Payload: payload})
}

func (p *RecordingPublisher) CloseAlert(alertType alert.Type, payload alert.Payload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Recorded{Opened: false, Type: alertType, Payload: payload})
}

// Calls returns a copy of everything recorded so far.
func (p *RecordingPublisher) Calls() []Recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Recorded, len(p.calls))
	copy(out, p.calls)
	return out
}
