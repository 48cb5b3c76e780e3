// Package metrics exposes the proxy core's Prometheus instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the proxy core's counters and gauges. The tunnel and relay
// code update them as tunnels open or fail, relay bytes move and loops are
// detected; ActiveTunnels counts CONNECT tunnels only, and TimeoutsFired is
// registered but not incremented by any code path.
type Metrics struct {
	TunnelsOpened   *prometheus.CounterVec
	TunnelsFailed   *prometheus.CounterVec
	RelayBytes      *prometheus.CounterVec
	TimeoutsFired   prometheus.Counter
	ActiveTunnels   prometheus.Gauge
	LoopsDetected   prometheus.Counter
}

// New registers and returns a fresh Metrics set on reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// registry across test runs.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TunnelsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foxy",
			Name:      "tunnels_opened_total",
			Help:      "Number of upstream tunnels successfully opened, by mode (connect|relay).",
		}, []string{"mode"}),
		TunnelsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foxy",
			Name:      "tunnels_failed_total",
			Help:      "Number of inbound requests rejected or failed before a tunnel was opened, by reason.",
		}, []string{"reason"}),
		RelayBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foxy",
			Name:      "relay_bytes_total",
			Help:      "Bytes relayed, by direction (upstream|downstream).",
		}, []string{"direction"}),
		TimeoutsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foxy",
			Name:      "op_timeouts_total",
			Help:      "Number of wrapped session operations that lost their race to the deadline timer.",
		}),
		ActiveTunnels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "foxy",
			Name:      "active_tunnels",
			Help:      "Number of currently open client<->upstream tunnels.",
		}),
		LoopsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foxy",
			Name:      "via_loops_detected_total",
			Help:      "Number of requests closed due to detecting this proxy's own Via token.",
		}),
	}
	reg.MustRegister(m.TunnelsOpened, m.TunnelsFailed, m.RelayBytes, m.TimeoutsFired, m.ActiveTunnels, m.LoopsDetected)
	return m
}
