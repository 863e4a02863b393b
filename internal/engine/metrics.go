package engine

import "github.com/prometheus/client_golang/prometheus"

// engineMetrics holds the engine's Prometheus collectors.
type engineMetrics struct {
	// transitions counts status transitions by target status.
	transitions *prometheus.CounterVec
	// nodesEnded counts terminal statuses.
	nodesEnded *prometheus.CounterVec
	// duplicateCallbacks counts resume or step-response deliveries dropped
	// because the node was already terminal.
	duplicateCallbacks prometheus.Counter
	// queuedTasks counts remote tasks handed to executors.
	queuedTasks prometheus.Counter
	// waiterPending tracks live wait registrations.
	waiterPending prometheus.Gauge
	// waiterAnomalies counts late or duplicate correlation resolutions.
	waiterAnomalies prometheus.Counter
	// alertsRaised counts alert-raised events observed on the bus.
	alertsRaised prometheus.Counter
}

func newEngineMetrics(registry *prometheus.Registry) *engineMetrics {
	m := &engineMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmech_node_transitions_total",
			Help: "Node execution status transitions by target status.",
		}, []string{"status"}),
		nodesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmech_nodes_ended_total",
			Help: "Node executions reaching a terminal status.",
		}, []string{"status"}),
		duplicateCallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowmech_duplicate_callbacks_dropped_total",
			Help: "Deliveries dropped because the node was already terminal.",
		}),
		queuedTasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowmech_tasks_queued_total",
			Help: "Remote tasks handed to task executors.",
		}),
		waiterPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowmech_waiter_pending_registrations",
			Help: "Live wait/notify registrations.",
		}),
		waiterAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowmech_waiter_anomalies_total",
			Help: "Late or duplicate correlation resolutions dropped.",
		}),
		alertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowmech_alerts_raised_total",
			Help: "Alerts raised on the event bus.",
		}),
	}
	if registry != nil {
		registry.MustRegister(
			m.transitions, m.nodesEnded, m.duplicateCallbacks,
			m.queuedTasks, m.waiterPending, m.waiterAnomalies, m.alertsRaised,
		)
	}
	return m
}
