package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsOpen tracks live websocket connections.
	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_connections_open",
		Help: "Currently open websocket connections.",
	})

	// RoomsActive tracks rooms with at least one member.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_rooms_active",
		Help: "Rooms with at least one member.",
	})

	// EventsRelayed counts outbound room events by type.
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_events_relayed_total",
		Help: "Outbound room events relayed, by event type.",
	}, []string{"event"})

	// Jobs counts execution jobs by language and final status.
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_jobs_total",
		Help: "Execution jobs, by language and outcome.",
	}, []string{"language", "status"})

	// JobDuration observes wall-clock run time of finished jobs.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collab_job_duration_seconds",
		Help:    "Wall-clock duration of finished jobs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
