package rawgkit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// the reliability layers. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	coalescedTotal *prometheus.CounterVec

	pinFailuresTotal *prometheus.CounterVec

	rateLimitedTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawgkit_requests_total",
				Help: "Total number of API requests made",
			},
			[]string{"status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rawgkit_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rawgkit_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawgkit_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"endpoint", "attempt"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawgkit_cache_hits_total",
				Help: "Total number of response cache hits",
			},
			[]string{"endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawgkit_cache_misses_total",
				Help: "Total number of response cache misses",
			},
			[]string{"endpoint"},
		),
		cacheSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "rawgkit_cache_entries",
				Help: "Number of entries currently held by the response cache",
			},
		),
		coalescedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawgkit_coalesced_requests_total",
				Help: "Total number of requests served by joining an in-flight call",
			},
			[]string{"endpoint"},
		),
		pinFailuresTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawgkit_pin_failures_total",
				Help: "Total number of TLS handshakes rejected by certificate pinning",
			},
			[]string{"endpoint"},
		),
		rateLimitedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawgkit_rate_limited_total",
				Help: "Total number of requests rejected by the client-side rate limiter",
			},
			[]string{"endpoint"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawgkit_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type", "endpoint"},
		),
	}
}

func (m *MetricsCollector) RecordRequestStart(endpoint string) {
	m.requestsInFlight.WithLabelValues(endpoint).Inc()
}

func (m *MetricsCollector) RecordRequestEnd(endpoint string) {
	m.requestsInFlight.WithLabelValues(endpoint).Dec()
}

func (m *MetricsCollector) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(code, endpoint).Inc()
	m.requestDuration.WithLabelValues(code, endpoint).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordRetry(endpoint string, attempt int) {
	m.retriesTotal.WithLabelValues(endpoint, strconv.Itoa(attempt)).Inc()
}

func (m *MetricsCollector) RecordCacheHit(endpoint string) {
	m.cacheHits.WithLabelValues(endpoint).Inc()
}

func (m *MetricsCollector) RecordCacheMiss(endpoint string) {
	m.cacheMisses.WithLabelValues(endpoint).Inc()
}

func (m *MetricsCollector) RecordCacheSize(entries int) {
	m.cacheSize.Set(float64(entries))
}

func (m *MetricsCollector) RecordCoalesced(endpoint string) {
	m.coalescedTotal.WithLabelValues(endpoint).Inc()
}

func (m *MetricsCollector) RecordPinFailure(endpoint string) {
	m.pinFailuresTotal.WithLabelValues(endpoint).Inc()
}

func (m *MetricsCollector) RecordRateLimited(endpoint string) {
	m.rateLimitedTotal.WithLabelValues(endpoint).Inc()
}

func (m *MetricsCollector) RecordError(errorType, endpoint string) {
	m.errorsTotal.WithLabelValues(errorType, endpoint).Inc()
}
