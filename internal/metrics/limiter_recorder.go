package metrics

import "github.com/prometheus/client_golang/prometheus"

// LimiterRecorder forwards limiter measurements to the prometheus collectors.
// It satisfies limiter.MetricsRecorder.
type LimiterRecorder struct {
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewLimiterRecorder returns a recorder bound to the ratelimit collectors.
func NewLimiterRecorder() *LimiterRecorder {
	return &LimiterRecorder{
		counters: map[string]*prometheus.CounterVec{
			"ratelimit.call":   RateLimitCallsTotal,
			"ratelimit.denied": RateLimitDeniedTotal,
			"ratelimit.error":  RateLimitErrorsTotal,
		},
		histograms: map[string]*prometheus.HistogramVec{
			"ratelimit.latency": RateLimitLatency,
		},
	}
}

// Add increments the counter registered under name. Unknown names are ignored.
func (r *LimiterRecorder) Add(name string, value float64, tags map[string]string) {
	if c, ok := r.counters[name]; ok {
		c.WithLabelValues(tags["op"]).Add(value)
	}
}

// Observe records value in the histogram registered under name.
func (r *LimiterRecorder) Observe(name string, value float64, tags map[string]string) {
	if h, ok := r.histograms[name]; ok {
		h.WithLabelValues(tags["op"]).Observe(value)
	}
}
