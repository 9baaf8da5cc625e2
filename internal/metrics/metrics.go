package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the insight service.
type Metrics struct {
	// Pipeline metrics
	Asks                 *prometheus.CounterVec
	AskLatency           *prometheus.HistogramVec
	ValidationRejections *prometheus.CounterVec
	RenderFallbacks      prometheus.Counter
	RecordsFetched       prometheus.Histogram

	// External call metrics
	ExternalCalls       *prometheus.CounterVec
	ExternalCallLatency *prometheus.HistogramVec

	// Storage metrics
	CacheLookups  *prometheus.CounterVec
	DBConnections *prometheus.GaugeVec
	RedisLatency  *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers all metrics on reg. A nil reg uses the
// default Prometheus registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		Asks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asks_total",
				Help:      "Questions answered, by final pipeline state and goal",
			},
			[]string{"state", "goal"},
		),
		AskLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ask_latency_seconds",
				Help:      "End-to-end latency of a question",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"state"},
		),
		ValidationRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_rejections_total",
				Help:      "Generated queries rejected by the safety validator",
			},
			[]string{"rule"},
		),
		RenderFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_fallbacks_total",
				Help:      "Answers produced by the fallback summary",
			},
		),
		RecordsFetched: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "records_fetched",
				Help:      "Records returned for the reporting period",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		ExternalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_calls_total",
				Help:      "Calls to the generator, record source and renderer",
			},
			[]string{"call", "status"},
		),
		ExternalCallLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_call_latency_seconds",
				Help:      "External call latency in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"call"},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "period_cache_lookups_total",
				Help:      "Period cache lookups",
			},
			[]string{"backend", "result"},
		),
		DBConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),
		RedisLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redis_latency_seconds",
				Help:      "Redis operation latency",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"operation"},
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),

		gatherer: gatherer,
	}
}

// Handler returns the Prometheus metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordAsk records a finished question.
func (m *Metrics) RecordAsk(state, goal string, latency time.Duration) {
	m.Asks.WithLabelValues(state, goal).Inc()
	m.AskLatency.WithLabelValues(state).Observe(latency.Seconds())
}

// RecordValidationRejection records a query rejected by rule.
func (m *Metrics) RecordValidationRejection(rule string) {
	m.ValidationRejections.WithLabelValues(rule).Inc()
}

// RecordRenderFallback records an answer built by the fallback summary.
func (m *Metrics) RecordRenderFallback() {
	m.RenderFallbacks.Inc()
}

// RecordRecordsFetched records the size of a fetched period.
func (m *Metrics) RecordRecordsFetched(n int) {
	m.RecordsFetched.Observe(float64(n))
}

// RecordExternalCall records one generator, fetch or render call.
func (m *Metrics) RecordExternalCall(call, status string, latency time.Duration) {
	m.ExternalCalls.WithLabelValues(call, status).Inc()
	m.ExternalCallLatency.WithLabelValues(call).Observe(latency.Seconds())
}

// RecordCacheLookup records a period cache hit or miss.
func (m *Metrics) RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(backend, result).Inc()
}

// RecordRedisLatency records a Redis operation.
func (m *Metrics) RecordRedisLatency(operation string, latency time.Duration) {
	m.RedisLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}
