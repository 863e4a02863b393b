package events

import (
	"context"

	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/events"
	fmlog "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/log"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsEventListener subscribes to a flowmech event bus and updates
// Prometheus metrics based on the events it receives.
type MetricsEventListener struct {
	bus            *ChannelEventBus
	log            fmlog.Logger
	nodesEnded     *prometheus.CounterVec // labeled by terminal status
	anomalyCounter prometheus.Counter
	alertsRaised   prometheus.Counter
}

// NewMetricsEventListener creates a new listener.
// It requires a ChannelEventBus to subscribe to, and the Prometheus
// collectors it needs to update.
func NewMetricsEventListener(bus *ChannelEventBus, nodesEnded *prometheus.CounterVec, anomalies, alertsRaised prometheus.Counter, log fmlog.Logger) *MetricsEventListener {
	if bus == nil || nodesEnded == nil || anomalies == nil || alertsRaised == nil || log == nil {
		panic("MetricsEventListener requires a non-nil ChannelEventBus, collectors, and Logger")
	}
	return &MetricsEventListener{
		bus:            bus,
		log:            log.With("component", "MetricsEventListener"),
		nodesEnded:     nodesEnded,
		anomalyCounter: anomalies,
		alertsRaised:   alertsRaised,
	}
}

// Start begins listening for events on the bus in a new goroutine.
// The provided context is used to signal shutdown.
func (l *MetricsEventListener) Start(ctx context.Context) {
	l.log.Debugf("Starting metrics event listener...")
	// The listening loop will run until the bus channel is closed or the context is done.
	for {
		select {
		case event, ok := <-l.bus.GetChannel():
			if !ok {
				l.log.Debugf("Event bus channel closed, stopping listener.")
				return
			}
			l.handleEvent(event)
		case <-ctx.Done():
			l.log.Debugf("Context cancelled, stopping metrics event listener.")
			return
		}
	}
}

// handleEvent processes a single event, incrementing metrics as needed.
func (l *MetricsEventListener) handleEvent(event events.Event) {
	switch event.Type {
	case events.NodeEnded:
		status, _ := event.Payload["status"].(string)
		if status == "" {
			status = "unknown"
		}
		l.nodesEnded.WithLabelValues(status).Inc()
	case events.AnomalyDetected:
		l.anomalyCounter.Inc()
	case events.AlertRaised:
		l.alertsRaised.Inc()
	}
}
