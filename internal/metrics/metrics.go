package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agora_connections_active",
			Help: "Currently connected sessions",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_auth_failures_total",
			Help: "Rejected connection attempts",
		},
	)

	// Event metrics
	EventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_events_routed_total",
			Help: "Inbound events handled",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_events_dropped_total",
			Help: "Inbound events discarded",
		},
		[]string{"reason"}, // "malformed", "unknown", "over_rate"
	)

	FanoutSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_fanout_sends_total",
			Help: "Messages queued to recipients",
		},
	)

	FanoutDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_fanout_drops_total",
			Help: "Messages dropped on full recipient buffers",
		},
	)

	// Admission control metrics
	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_quota_rejections_total",
			Help: "Requests rejected by admission control",
		},
		[]string{"policy"},
	)
)
