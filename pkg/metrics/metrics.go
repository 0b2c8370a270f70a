package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueued counts notification jobs accepted by the queue.
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentpool_jobs_enqueued_total",
			Help: "Total number of jobs accepted by the notification queue",
		},
		[]string{"kind"},
	)

	// JobsProcessed counts processed jobs by outcome (completed|retried|dead).
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentpool_jobs_processed_total",
			Help: "Total number of queue jobs processed",
		},
		[]string{"kind", "result"},
	)

	// Deliveries counts realtime push attempts by outcome (delivered|offline).
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentpool_realtime_deliveries_total",
			Help: "Total number of realtime push attempts",
		},
		[]string{"result"},
	)

	// ActiveConnections tracks currently open websocket connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "talentpool_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// NotificationsPurged counts rows removed by retention cleanup, by task.
	NotificationsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentpool_notifications_purged_total",
			Help: "Total number of notifications removed by cleanup tasks",
		},
		[]string{"task"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "talentpool_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
