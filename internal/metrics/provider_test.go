package metrics_test

import (
	"testing"

	"github.com/flowmech-labs/flowmech/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRegistryProvider_IsolatedRegistries(t *testing.T) {
	a := metrics.NewPrometheusRegistryProvider()
	b := metrics.NewPrometheusRegistryProvider()

	require.NotNil(t, a.Registry())
	assert.NotSame(t, a.Registry(), b.Registry(), "each provider owns its own registry")
}

func TestNewBusCollectors_RegistersAndCounts(t *testing.T) {
	provider := metrics.NewPrometheusRegistryProvider()
	c := metrics.NewBusCollectors(provider.Registry())

	c.NodesEnded.WithLabelValues("SUCCEEDED").Inc()
	c.Anomalies.Inc()
	c.AlertsRaised.Inc()
	c.AlertsRaised.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.NodesEnded.WithLabelValues("SUCCEEDED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.Anomalies))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.AlertsRaised))

	families, err := provider.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "flowmech_bus_nodes_ended_total")
	assert.Contains(t, names, "flowmech_bus_anomalies_total")
	assert.Contains(t, names, "flowmech_bus_alerts_total")
}
