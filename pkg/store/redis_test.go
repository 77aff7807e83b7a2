package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newIntegrationStore(t *testing.T) *RedisStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := Dial(ctx, "redis://localhost:6379/0")
	if err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStore_Integration(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	base := fmt.Sprintf("store_it_%d:", time.Now().UnixNano())

	t.Run("GetSetDecr", func(t *testing.T) {
		key := base + "tokens"
		if _, found, err := s.Get(ctx, key); err != nil || found {
			t.Fatalf("expected absent key, found=%v err=%v", found, err)
		}
		if err := s.Set(ctx, key, "100"); err != nil {
			t.Fatal(err)
		}
		n, err := s.DecrBy(ctx, key, 5)
		if err != nil {
			t.Fatal(err)
		}
		if n != 95 {
			t.Errorf("expected 95, got %d", n)
		}
	})

	t.Run("TTL", func(t *testing.T) {
		key := base + "ttl"
		if err := s.SetWithTTL(ctx, key, "v", time.Second); err != nil {
			t.Fatal(err)
		}
		ttl, err := s.Client().TTL(ctx, key).Result()
		if err != nil {
			t.Fatal(err)
		}
		if ttl <= 0 || ttl > time.Second {
			t.Errorf("expected ttl in (0, 1s], got %s", ttl)
		}
	})

	t.Run("ScanPrefix", func(t *testing.T) {
		prefix := base + "scan[1]:"
		for i := 0; i < 3; i++ {
			if err := s.Set(ctx, fmt.Sprintf("%s%d", prefix, i), "x"); err != nil {
				t.Fatal(err)
			}
		}
		// A sibling that would match if the glob bracket were not escaped.
		if err := s.Set(ctx, base+"scan1:0", "x"); err != nil {
			t.Fatal(err)
		}
		keys, err := s.ScanPrefix(ctx, prefix)
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 3 {
			t.Errorf("expected 3 keys, got %v", keys)
		}
		if err := s.Delete(ctx, keys...); err != nil {
			t.Fatal(err)
		}
		if ok, _ := s.Exists(ctx, keys[0]); ok {
			t.Error("expected key to be deleted")
		}
	})
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := NewRedisStore(client, WithTimeout(100*time.Millisecond))
	defer s.Close()

	_, _, err := s.Get(context.Background(), "tokens:user_1")
	if err == nil {
		t.Fatal("expected an error from an unreachable Redis")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestEscapeGlob(t *testing.T) {
	got := escapeGlob(`api_key:a*b?[c]\`)
	want := `api_key:a\*b\?\[c\]\\`
	if got != want {
		t.Errorf("escapeGlob = %q, want %q", got, want)
	}
}
