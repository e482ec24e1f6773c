package router

import (
	"github.com/prometheus/client_golang/prometheus"

	"cdnrouter/internal/pool"
)

// Metrics are the Prometheus collectors of the routing service.
type Metrics struct {
	Selections *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	RingPoints prometheus.Gauge
	RingNodes  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdnrouter",
			Name:      "selections_total",
			Help:      "Requests routed, by primary node.",
		}, []string{"node"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cdnrouter",
			Name:      "selection_errors_total",
			Help:      "Routing failures and substituted defaults, by reason.",
		}, []string{"reason"}),
		RingPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cdnrouter",
			Name:      "ring_points",
			Help:      "Points on the published ring.",
		}),
		RingNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cdnrouter",
			Name:      "ring_nodes",
			Help:      "Nodes on the published ring.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Selections, m.Errors, m.RingPoints, m.RingNodes)
	}
	return m
}

// ObserveSnapshot updates the ring gauges. It is meant to be registered with
// pool.Pool.OnChange.
func (m *Metrics) ObserveSnapshot(s *pool.Snapshot) {
	m.RingPoints.Set(float64(s.Ring.Len()))
	m.RingNodes.Set(float64(len(s.Members())))
}
