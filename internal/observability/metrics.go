package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every custom collector the service exports.
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     *prometheus.CounterVec

	// Auth Metrics
	UsersRegisteredTotal *prometheus.CounterVec
	LoginAttemptsTotal   *prometheus.CounterVec
	AuthRejectionsTotal  *prometheus.CounterVec
	TokensIssuedTotal    prometheus.Counter
	TokensRevokedTotal   prometheus.Counter

	// Todo Metrics
	TodosCreatedTotal *prometheus.CounterVec

	// Database Metrics
	DBQueryDuration *prometheus.HistogramVec

	// Cache (Redis) Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Queue (RabbitMQ) Metrics
	QueueMessagesPublished *prometheus.CounterVec
	QueueMessagesConsumed  *prometheus.CounterVec
	ActivityEventsFailed   *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"scope"}, // ip, user
		),

		UsersRegisteredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "users_registered_total",
				Help: "Total number of registered users",
			},
			[]string{"role"},
		),

		LoginAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"outcome"}, // success, invalid_credentials, bad_request, error
		),

		AuthRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rejections_total",
				Help: "Total number of requests rejected by an authentication strategy",
			},
			[]string{"strategy", "reason"},
		),

		TokensIssuedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tokens_issued_total",
				Help: "Total number of session tokens issued",
			},
		),

		TokensRevokedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tokens_revoked_total",
				Help: "Total number of session tokens revoked on logout",
			},
		),

		TodosCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todos_created_total",
				Help: "Total number of todos created",
			},
			[]string{"status"}, // success, failed
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),

		QueueMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_published_total",
				Help: "Total number of messages published to the queue",
			},
			[]string{"queue_name"},
		),

		QueueMessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_consumed_total",
				Help: "Total number of messages consumed from the queue",
			},
			[]string{"queue_name"},
		),

		ActivityEventsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_events_failed_total",
				Help: "Total number of activity events that could not be stored",
			},
			[]string{"event_type", "error_type"},
		),
	}
}

// GlobalMetrics is registered with the default Prometheus registry so that
// promhttp.Handler() exposes it.
var GlobalMetrics = NewMetrics(prometheus.DefaultRegisterer)
