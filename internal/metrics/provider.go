// Package metrics provides the Prometheus-backed registry provider and the
// bus-sourced collector set the service exposes alongside the engine's own
// counters.
package metrics

import (
	fm "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRegistryProvider implements fm.RegistryProvider around a
// dedicated Prometheus registry, keeping service collectors off the global
// default registry.
type PrometheusRegistryProvider struct {
	registry *prometheus.Registry
}

// NewPrometheusRegistryProvider creates a provider with a fresh registry.
func NewPrometheusRegistryProvider() *PrometheusRegistryProvider {
	return &PrometheusRegistryProvider{
		registry: prometheus.NewRegistry(),
	}
}

// Registry returns the underlying Prometheus registry.
func (p *PrometheusRegistryProvider) Registry() *prometheus.Registry {
	return p.registry
}

var _ fm.RegistryProvider = (*PrometheusRegistryProvider)(nil)

// BusCollectors counts events observed on the event bus. They are registered
// separately from the engine's direct counters so operators can compare
// emitted events against direct counts and spot a lossy bus.
type BusCollectors struct {
	NodesEnded   *prometheus.CounterVec // labeled by terminal status
	Anomalies    prometheus.Counter
	AlertsRaised prometheus.Counter
}

// NewBusCollectors builds the bus-sourced collectors and registers them with reg.
func NewBusCollectors(reg prometheus.Registerer) *BusCollectors {
	c := &BusCollectors{
		NodesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmech_bus_nodes_ended_total",
			Help: "Node-ended events observed on the event bus.",
		}, []string{"status"}),
		Anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowmech_bus_anomalies_total",
			Help: "Anomaly events observed on the event bus.",
		}),
		AlertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowmech_bus_alerts_total",
			Help: "Alert-raised events observed on the event bus.",
		}),
	}
	reg.MustRegister(c.NodesEnded, c.Anomalies, c.AlertsRaised)
	return c
}
