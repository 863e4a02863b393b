package perpetual

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the scheduler's Prometheus collectors.
type Metrics struct {
	// AssignOutcomes counts assignment attempts by outcome label
	// (assigned, no_eligible_delegates, no_delegate_installed,
	// no_delegate_available, failed).
	AssignOutcomes *prometheus.CounterVec
	// RebalanceFastPath counts rebalances resolved by the connected fast
	// path without re-validation.
	RebalanceFastPath prometheus.Counter
}

// NewMetrics creates the scheduler collectors and registers them when a
// registry is provided.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AssignOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowmech_perpetual_assign_outcomes_total",
			Help: "Perpetual task assignment attempts by outcome.",
		}, []string{"outcome"}),
		RebalanceFastPath: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowmech_perpetual_rebalance_fast_path_total",
			Help: "Rebalances resolved by the connected fast path.",
		}),
	}
	if registry != nil {
		registry.MustRegister(m.AssignOutcomes, m.RebalanceFastPath)
	}
	return m
}
