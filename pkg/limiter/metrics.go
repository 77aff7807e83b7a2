package limiter

// MetricsRecorder receives limiter measurements. Names used: ratelimit.call,
// ratelimit.denied, ratelimit.error (counters) and ratelimit.latency (seconds).
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpMetricsRecorder discards all measurements. It is the default recorder,
// so a limiter always has a non-nil one.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
