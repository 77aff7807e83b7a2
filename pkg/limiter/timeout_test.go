package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unsungfields/gateway/pkg/store"
)

func TestRedisLimiter_ContextCancellation(t *testing.T) {
	opt, _ := redis.ParseURL("redis://localhost:6379")
	client := redis.NewClient(opt)
	defer client.Close()

	limiter, err := NewRedisLimiter(client)
	if err != nil {
		t.Skipf("Skipping test: Redis not available (%v)", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = limiter.Check(ctx, "user_cancel")

	if err == nil {
		t.Fatal("Expected an error due to cancelled context, but got nil")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected error to be context.Canceled, but got: %v", err)
	}
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Expected error to wrap store.ErrUnavailable, but got: %v", err)
	}
}

func TestRedisLimiter_Deadline(t *testing.T) {
	opt, _ := redis.ParseURL("redis://localhost:6379")
	client := redis.NewClient(opt)
	defer client.Close()

	limiter, err := NewRedisLimiter(client)
	if err != nil {
		t.Skipf("Skipping test: Redis not available (%v)", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	_, err = limiter.Check(ctx, "user_deadline")

	if err == nil {
		t.Fatal("Expected timeout error, but got nil")
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected error to be context.DeadlineExceeded, but got: %v", err)
	}
}

func TestStoreLimiter_Deadline(t *testing.T) {
	l, err := NewStoreLimiter(store.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err = l.Status(ctx, "user_deadline")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected error to be context.DeadlineExceeded, but got: %v", err)
	}
}
