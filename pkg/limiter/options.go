package limiter

import "time"

const defaultTimeout = 2 * time.Second

type options struct {
	prefix   string
	timeout  time.Duration
	recorder MetricsRecorder
	policy   Policy
	now      func() time.Time
}

// Option configures a limiter.
type Option func(*options)

// WithPrefix prepends prefix to the "tokens:" and "last_refill:" keys.
// The default is no prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTimeout bounds each Check, Status, and Refill call (default 2s).
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRecorder injects a metrics backend.
func WithRecorder(r MetricsRecorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithClock replaces time.Now. Buckets are kept at one-second resolution.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) (options, error) {
	o := options{
		timeout:  defaultTimeout,
		recorder: &NoOpMetricsRecorder{},
		policy:   DefaultPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.policy.Validate(); err != nil {
		return options{}, err
	}
	return o, nil
}

func (o options) tokensKey(userID string) string {
	return o.prefix + "tokens:" + userID
}

func (o options) lastRefillKey(userID string) string {
	return o.prefix + "last_refill:" + userID
}

func (o options) record(op string, dec *Decision, err error, start time.Time) {
	tags := map[string]string{"op": op}
	o.recorder.Add("ratelimit.call", 1, tags)
	switch {
	case err != nil:
		o.recorder.Add("ratelimit.error", 1, tags)
	case dec != nil && !dec.Allow:
		o.recorder.Add("ratelimit.denied", 1, tags)
	}
	o.recorder.Observe("ratelimit.latency", time.Since(start).Seconds(), tags)
}
