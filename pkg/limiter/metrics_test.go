package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unsungfields/gateway/pkg/store"
)

// MockRecorder captures metrics in memory for assertion
type MockRecorder struct {
	mu       sync.Mutex
	Counters map[string]float64
	Timings  map[string][]float64
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		Counters: make(map[string]float64),
		Timings:  make(map[string][]float64),
	}
}

func (m *MockRecorder) Add(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name] += value
}

func (m *MockRecorder) Observe(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[name] = append(m.Timings[name], value)
}

func TestStoreLimiter_Metrics(t *testing.T) {
	mock := NewMockRecorder()
	clock := newFakeClock()
	l, err := NewStoreLimiter(store.NewMemoryStore(), WithRecorder(mock), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 21; i++ {
		if _, err := l.Check(ctx, "user_1"); err != nil {
			t.Fatalf("Check failed: %v", err)
		}
	}
	if _, err := l.Status(ctx, "user_1"); err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	if val := mock.Counters["ratelimit.call"]; val != 22 {
		t.Errorf("Expected 'ratelimit.call' counter to be 22, got %v", val)
	}
	if val := mock.Counters["ratelimit.denied"]; val != 1 {
		t.Errorf("Expected 'ratelimit.denied' counter to be 1, got %v", val)
	}
	if val := mock.Counters["ratelimit.error"]; val != 0 {
		t.Errorf("Expected no errors, got %v", val)
	}
	if timings := mock.Timings["ratelimit.latency"]; len(timings) != 22 {
		t.Errorf("Expected 22 latency observations, got %d", len(timings))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	l.Check(cancelled, "user_1")
	if val := mock.Counters["ratelimit.error"]; val != 1 {
		t.Errorf("Expected 'ratelimit.error' counter to be 1, got %v", val)
	}
}

func TestRedisLimiter_Metrics(t *testing.T) {
	opts := &redis.Options{Addr: "localhost:6379"}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping metrics test: Redis not available (%v)", err)
	}
	defer client.Close()

	mock := NewMockRecorder()

	limiter, err := NewRedisLimiter(client, WithRecorder(mock), WithPrefix("metrics_test:"), WithClock(newFakeClock().Now))
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	user := uniqueUser("metrics")
	defer cleanup(client, "metrics_test:", user)

	if _, err := limiter.Check(ctx, user); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if val, ok := mock.Counters["ratelimit.call"]; !ok || val != 1 {
		t.Errorf("Expected 'ratelimit.call' counter to be 1, got %v", val)
	}
	if timings, ok := mock.Timings["ratelimit.latency"]; !ok || len(timings) != 1 {
		t.Error("Expected 1 latency observation")
	} else if timings[0] <= 0 {
		t.Errorf("Expected positive latency, got %v", timings[0])
	}
}
