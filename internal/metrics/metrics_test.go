package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorRegistersEveryMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.Ticks.Inc()
	c.PacketsAtDevice.Add(3)
	c.PacketsDropped.Inc()
	c.DHCPLeases.Set(2)
	c.InFlight.Set(5)

	require.InDelta(t, 1, testutil.ToFloat64(c.Ticks), 0)
	require.InDelta(t, 3, testutil.ToFloat64(c.PacketsAtDevice), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.PacketsDropped), 0)
	require.InDelta(t, 2, testutil.ToFloat64(c.DHCPLeases), 0)
	require.InDelta(t, 5, testutil.ToFloat64(c.InFlight), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 10, "every field on Collector should be registered")
}

func TestNewCollectorPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	require.Panics(t, func() {
		NewCollector(reg)
	}, "registering a second collector against the same registry should collide on metric names")
}
