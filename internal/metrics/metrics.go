// Package metrics exposes Prometheus counters/gauges for the running
// simulation, grounded on internal/metrics/collector.go's
// Collector/InterfaceStats/PolicyStats pattern — generalized from
// firewall policy counters to tick/packet/STP/DHCP counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector owns every metric the engine updates per tick.
type Collector struct {
	Ticks           prometheus.Counter
	PacketsAtDevice prometheus.Counter
	PacketsOnLink   prometheus.Counter
	PacketsDropped  prometheus.Counter
	PacketsArrived  prometheus.Counter
	ARPMisses       prometheus.Counter
	FirewallDenies  prometheus.Counter
	STPConvergences prometheus.Counter
	DHCPLeases      prometheus.Gauge
	InFlight        prometheus.Gauge
}

// NewCollector builds a Collector and registers it with reg. Passing a
// fresh prometheus.NewRegistry() keeps test runs from colliding on the
// default global registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlab_ticks_total", Help: "Total scheduler ticks processed.",
		}),
		PacketsAtDevice: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlab_packets_at_device_total", Help: "Packets dispatched to a device engine.",
		}),
		PacketsOnLink: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlab_packets_on_link_total", Help: "Packets advanced across a link.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlab_packets_dropped_total", Help: "Packets dropped by any engine stage.",
		}),
		PacketsArrived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlab_packets_arrived_total", Help: "Packets delivered to their destination stack.",
		}),
		ARPMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlab_arp_misses_total", Help: "ARP resolution misses that triggered buffering.",
		}),
		FirewallDenies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlab_firewall_denies_total", Help: "Packets denied by firewall evaluation.",
		}),
		STPConvergences: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlab_stp_convergences_total", Help: "Spanning-tree convergence runs.",
		}),
		DHCPLeases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netlab_dhcp_leases", Help: "Currently active DHCP leases.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netlab_packets_in_flight", Help: "Packets currently tracked by the world.",
		}),
	}
	reg.MustRegister(c.Ticks, c.PacketsAtDevice, c.PacketsOnLink, c.PacketsDropped,
		c.PacketsArrived, c.ARPMisses, c.FirewallDenies, c.STPConvergences, c.DHCPLeases, c.InFlight)
	return c
}
