package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	SlowQueryCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "db_slow_query_total",
		Help: "Total number of queries slower than the configured threshold",
	})

	SlowQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "db_slow_query_duration_seconds",
		Help:    "Duration of slow queries in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12.8s
	})

	HabitsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "habits_created_total",
		Help: "Total number of habits created",
	})

	// action: completed, uncompleted
	CompletionToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_completion_toggles_total",
			Help: "Total number of completion toggles",
		},
		[]string{"action"},
	)

	AnalyticsComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analytics_compute_duration_seconds",
		Help:    "Time spent deriving a dashboard from a snapshot",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
	})

	// result: hit, miss
	AnalyticsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_cache_lookups_total",
			Help: "Dashboard cache lookups by result",
		},
		[]string{"result"},
	)

	// status: published, skipped, failed
	RemindersPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_reminders_total",
			Help: "Reminder events handled by the scheduler",
		},
		[]string{"status"},
	)

	// status: sent, failed
	OutboxDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_dispatched_total",
			Help: "Outbox events handed to the broker",
		},
		[]string{"status"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(duration time.Duration) {
	SlowQueryCount.Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}

func IncrementHabitsCreated() {
	HabitsCreated.Inc()
}

func RecordCompletionToggle(completed bool) {
	action := "uncompleted"
	if completed {
		action = "completed"
	}
	CompletionToggles.WithLabelValues(action).Inc()
}

func RecordAnalyticsCompute(duration time.Duration) {
	AnalyticsComputeDuration.Observe(duration.Seconds())
}

func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	AnalyticsCacheLookups.WithLabelValues(result).Inc()
}

func IncrementReminder(status string) {
	RemindersPublished.WithLabelValues(status).Inc()
}

func IncrementOutboxDispatched(status string) {
	OutboxDispatched.WithLabelValues(status).Inc()
}
