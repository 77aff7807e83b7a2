package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unsungfields",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unsungfields",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Rate limiter calls by operation
	RateLimitCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unsungfields",
			Subsystem: "ratelimit",
			Name:      "calls_total",
			Help:      "Total rate limiter calls",
		},
		[]string{"op"},
	)

	RateLimitDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unsungfields",
			Subsystem: "ratelimit",
			Name:      "denied_total",
			Help:      "Requests denied by the rate limiter",
		},
		[]string{"op"},
	)

	RateLimitErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unsungfields",
			Subsystem: "ratelimit",
			Name:      "errors_total",
			Help:      "Rate limiter calls that failed, typically because the store was unavailable",
		},
		[]string{"op"},
	)

	RateLimitLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unsungfields",
			Subsystem: "ratelimit",
			Name:      "latency_seconds",
			Help:      "Rate limiter call latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 2},
		},
		[]string{"op"},
	)

	// API key lifecycle
	APIKeyOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unsungfields",
			Subsystem: "gateway",
			Name:      "api_key_operations_total",
			Help:      "API key issue/list/revoke attempts",
		},
		[]string{"operation", "status"},
	)

	// Magic link lifecycle
	MagicLinksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unsungfields",
			Subsystem: "gateway",
			Name:      "magic_links_total",
			Help:      "Magic link issue/verify outcomes",
		},
		[]string{"operation", "status"},
	)

	// Generation backend
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unsungfields",
			Subsystem: "gateway",
			Name:      "generation_duration_seconds",
			Help:      "Generation backend call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "status"},
	)

	GenerationTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unsungfields",
			Subsystem: "gateway",
			Name:      "generation_tokens_total",
			Help:      "Completion tokens returned by the generation backend",
		},
		[]string{"model"},
	)
)

// RecordRequest records an HTTP request with all relevant labels
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordAPIKeyOperation records an API key operation outcome
func RecordAPIKeyOperation(operation, status string) {
	APIKeyOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordMagicLink records a magic link outcome
func RecordMagicLink(operation, status string) {
	MagicLinksTotal.WithLabelValues(operation, status).Inc()
}

// RecordGeneration records a generation backend call
func RecordGeneration(model, status string, durationSec float64, completionTokens int) {
	GenerationDuration.WithLabelValues(model, status).Observe(durationSec)
	if completionTokens > 0 {
		GenerationTokensTotal.WithLabelValues(model).Add(float64(completionTokens))
	}
}
