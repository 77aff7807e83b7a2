package store

import (
	"context"
	"fmt"
	"time"

	"github.com/unsungfields/gateway/pkg/apperrors"
)

// ErrUnavailable is wrapped by every error caused by the store being
// unreachable, slow, or cancelled. The original cause stays in the chain.
var ErrUnavailable = apperrors.New(apperrors.KindStoreUnavailable, "store unavailable")

// CounterStore is a shared key-value map holding integer counters and opaque
// string values. Implementations must be safe for concurrent use.
type CounterStore interface {
	// Get returns the value stored at key. found is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value without expiry, clearing any previous TTL.
	Set(ctx context.Context, key, value string) error
	// SetWithTTL stores value; it becomes unreadable once ttl elapses.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// DecrBy atomically subtracts amount from the integer at key and returns
	// the new value. A missing key counts as 0.
	DecrBy(ctx context.Context, key string, amount int64) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// ScanPrefix lists keys starting with prefix. The result is a best-effort
	// snapshot, not atomic with respect to concurrent writes.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

const defaultTimeout = 2 * time.Second

type config struct {
	timeout time.Duration
	now     func() time.Time
}

// Option configures a store.
type Option func(*config)

// WithTimeout bounds every store call. Zero or negative values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock replaces time.Now for TTL bookkeeping in MemoryStore.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{timeout: defaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Unavailable wraps err so that errors.Is(result, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
