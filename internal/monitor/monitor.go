package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Monitor collects the server's operational metrics. Handlers are
// exposed through the REST server's /metrics endpoint.
type Monitor struct {
	OpenConnections  prometheus.Gauge
	MessagesReceived prometheus.Counter
	MovesPlayed      prometheus.Counter
	RejectedActions  prometheus.Counter
	ActionLatency    prometheus.Histogram
}

func New(namespace string) *Monitor {
	m := &Monitor{
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of open websocket connections",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of inbound messages",
		}),
		MovesPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_played_total",
			Help:      "Total number of accepted board moves",
		}),
		RejectedActions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_actions_total",
			Help:      "Total number of rejected player actions",
		}),
		ActionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_latency_seconds",
			Help:      "Action handling latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.OpenConnections,
		m.MessagesReceived,
		m.MovesPlayed,
		m.RejectedActions,
		m.ActionLatency,
	)

	return m
}

func (that *Monitor) ObserveAction(start time.Time) {
	that.ActionLatency.Observe(time.Since(start).Seconds())
}
