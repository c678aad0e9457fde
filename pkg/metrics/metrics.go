package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	// Engine metrics
	EvaluationTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_evaluation_ticks_total",
			Help: "Total number of zone evaluation ticks",
		},
		[]string{"zone", "outcome"},
	)

	EvaluationTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surge_evaluation_tick_duration_seconds",
			Help:    "Zone evaluation tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"zone"},
	)

	ActiveSurgeEventsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "surge_active_events_total",
			Help: "Current number of active surge events across all zones",
		},
	)

	CurrentMultiplierGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "surge_current_multiplier",
			Help: "Current surge multiplier per zone",
		},
		[]string{"zone"},
	)

	StaleSnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_stale_snapshots_total",
			Help: "Total number of ticks skipped due to stale telemetry snapshots",
		},
		[]string{"zone"},
	)

	TickPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_tick_panics_total",
			Help: "Total number of recovered panics inside zone ticks",
		},
		[]string{"zone"},
	)

	ManualOverridesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surge_manual_overrides_total",
			Help: "Total number of manual surge activation attempts",
		},
		[]string{"status"},
	)

	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"service"},
	)

	DatabaseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"service", "operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	RabbitMQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_published_total",
			Help: "Total number of messages published to RabbitMQ",
		},
		[]string{"service", "queue", "status"},
	)

	RabbitMQMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_consumed_total",
			Help: "Total number of messages consumed from RabbitMQ",
		},
		[]string{"service", "queue", "status"},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// RecordEvaluationTick records the outcome and duration of a zone tick
func RecordEvaluationTick(zone, outcome string, duration time.Duration) {
	EvaluationTicksTotal.WithLabelValues(zone, outcome).Inc()
	EvaluationTickDuration.WithLabelValues(zone).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(service, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(service, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordRabbitMQPublish records RabbitMQ publish metrics
func RecordRabbitMQPublish(service, queue string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RabbitMQMessagesPublished.WithLabelValues(service, queue, status).Inc()
}

// RecordRabbitMQConsume records RabbitMQ consume metrics
func RecordRabbitMQConsume(service, queue string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RabbitMQMessagesConsumed.WithLabelValues(service, queue, status).Inc()
}
