// Package metrics holds the Prometheus collectors of the watch server. They
// register with the default registry and are served on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "watchroom"

var (
	SyncEventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_relayed_total",
			Help:      "Sync events published to a room channel, by event type",
		},
		[]string{"type"},
	)

	SyncEventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_rejected_total",
			Help:      "Sync events refused at the server boundary, by reason",
		},
		[]string{"reason"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Live WebSocket connections",
		},
	)

	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "best_effort_failures_total",
			Help:      "Failed best-effort operations that were logged and dropped",
		},
		[]string{"op"},
	)

	RoomJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_joins_total",
			Help:      "Room join attempts, by outcome",
		},
		[]string{"outcome"},
	)

	WSMessageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ws_message_duration_seconds",
			Help:      "Time spent handling one inbound WebSocket message",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"type"},
	)
)

func RecordSyncEventRelayed(eventType string) {
	SyncEventsRelayed.WithLabelValues(eventType).Inc()
}

func RecordSyncEventRejected(reason string) {
	SyncEventsRejected.WithLabelValues(reason).Inc()
}

func RecordBestEffortFailure(op string) {
	BestEffortFailures.WithLabelValues(op).Inc()
}

func RecordJoin(outcome string) {
	RoomJoins.WithLabelValues(outcome).Inc()
}

func ObserveWSMessage(messageType string, d time.Duration) {
	WSMessageDuration.WithLabelValues(messageType).Observe(d.Seconds())
}
