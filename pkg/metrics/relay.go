package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics records outbox relay outcomes and the unpublished backlog.
type RelayMetrics struct {
	relayed *prometheus.CounterVec
	backlog prometheus.Gauge
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	m := &RelayMetrics{
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_relayed_total",
			Help:      "Outbox rows handled by the relay, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_backlog",
			Help:      "Outbox rows not yet published after the last batch.",
		}),
	}
	reg.MustRegister(m.relayed, m.backlog)
	return m
}

func (m *RelayMetrics) EventRelayed(eventType, outcome string) {
	if m == nil || m.relayed == nil {
		return
	}
	m.relayed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *RelayMetrics) Backlog(pending int64) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(pending))
}
