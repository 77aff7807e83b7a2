package limiter

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unsungfields/gateway/pkg/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, opts ...Option) (*StoreLimiter, *store.MemoryStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := store.NewMemoryStore(store.WithClock(clock.Now))
	l, err := NewStoreLimiter(s, append([]Option{WithClock(clock.Now)}, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create StoreLimiter: %v", err)
	}
	return l, s, clock
}

func storedInt(t *testing.T, s store.CounterStore, key string) int64 {
	t.Helper()
	raw, found, err := s.Get(context.Background(), key)
	if err != nil || !found {
		t.Fatalf("expected %s to be stored (found=%v err=%v)", key, found, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		t.Fatalf("non-integer at %s: %q", key, raw)
	}
	return n
}

func TestStoreLimiter_FirstCheck(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l, s, clock := newTestLimiter(t)

	dec, err := l.Check(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allow {
		t.Error("Expected request to be allowed, but got denied!")
	}
	if dec.Remaining != 95 {
		t.Errorf("Expected 95 remaining tokens got %d instead!", dec.Remaining)
	}
	if got := storedInt(t, s, "tokens:user_1"); got != 95 {
		t.Errorf("Expected tokens:user_1 = 95, got %d", got)
	}
	if got := storedInt(t, s, "last_refill:user_1"); got != clock.Now().Unix() {
		t.Errorf("Expected last_refill:user_1 = now, got %d", got)
	}
}

func TestStoreLimiter_Exhaustion(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLimiter(t)

	for i := 0; i < 20; i++ {
		dec, err := l.Check(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if !dec.Allow {
			t.Fatalf("Request %d was unexpectedly denied", i)
		}
	}

	dec, err := l.Check(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allow {
		t.Fatal("The 21st request should have been denied, but was allowed")
	}
	if dec.RetryAfter != 30*time.Second {
		t.Errorf("Expected 30s retry, got %s", dec.RetryAfter)
	}
	if got := storedInt(t, s, "tokens:user_1"); got != 0 {
		t.Errorf("A denial must not decrement; expected 0 tokens, got %d", got)
	}
	if err := dec.Err(); err == nil {
		t.Error("Expected a rate limited error for a denied decision")
	}
}

func TestStoreLimiter_DenyTimeLeft(t *testing.T) {
	ctx := context.Background()
	p := DefaultPolicy()
	p.RefillRate = 0
	l, s, clock := newTestLimiter(t, WithPolicy(p))

	last := clock.Now().Add(-12 * time.Second).Unix()
	s.Set(ctx, "tokens:user_1", "0")
	s.Set(ctx, "last_refill:user_1", strconv.FormatInt(last, 10))

	dec, err := l.Check(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allow {
		t.Fatal("Expected denial inside the cooldown")
	}
	if dec.RetryAfter != 18*time.Second {
		t.Errorf("Expected last_refill + 30 - now = 18s, got %s", dec.RetryAfter)
	}
}

func TestStoreLimiter_RefillAfterCooldown(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newTestLimiter(t)

	for i := 0; i < 20; i++ {
		l.Check(ctx, "user_1")
	}
	if dec, _ := l.Check(ctx, "user_1"); dec.Allow {
		t.Fatal("Should be denied immediately")
	}

	clock.Advance(30 * time.Second)

	st, err := l.Refill(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Tokens != 30 {
		t.Errorf("Expected 30 tokens after 30s at 1 token/s, got %d", st.Tokens)
	}
	if !st.LastRefill.Equal(clock.Now()) {
		t.Errorf("Expected last refill at now, got %s", st.LastRefill)
	}

	clock.Advance(time.Hour)
	st, _ = l.Refill(ctx, "user_1")
	if st.Tokens != 100 {
		t.Errorf("Expected refill capped at 100, got %d", st.Tokens)
	}
}

func TestStoreLimiter_NeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	l, s, clock := newTestLimiter(t)

	steps := []time.Duration{0, time.Second, 7 * time.Second, 0, 45 * time.Second, 2 * time.Minute, 3 * time.Second}
	for round := 0; round < 10; round++ {
		for _, step := range steps {
			clock.Advance(step)
			dec, err := l.Check(ctx, "user_1")
			if err != nil {
				t.Fatal(err)
			}
			if dec.Remaining > 100 || dec.Remaining < 0 {
				t.Fatalf("Remaining out of bounds: %d", dec.Remaining)
			}
			if got := storedInt(t, s, "tokens:user_1"); got > 100 || got < 0 {
				t.Fatalf("Stored balance out of bounds: %d", got)
			}
		}
	}
}

func TestStoreLimiter_StatusRefillsAsSideEffect(t *testing.T) {
	ctx := context.Background()
	l, s, clock := newTestLimiter(t)

	for i := 0; i < 20; i++ {
		l.Check(ctx, "user_1")
	}

	st, err := l.Status(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Exceeded || st.Tokens != 0 || st.TimeLeft != 30*time.Second {
		t.Errorf("Expected exceeded with 30s left, got %+v", st)
	}

	clock.Advance(10 * time.Second)
	st, err = l.Status(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Exceeded || st.Tokens != 10 {
		t.Errorf("Expected 10 available tokens, got %+v", st)
	}
	if got := storedInt(t, s, "last_refill:user_1"); got != clock.Now().Unix() {
		t.Errorf("Status should persist the refill timestamp, got %d", got)
	}
}

func TestStoreLimiter_SustainedRateAfterExhaustion(t *testing.T) {
	ctx := context.Background()
	l, s, clock := newTestLimiter(t)

	for i := 0; i < 20; i++ {
		l.Check(ctx, "user_1")
	}

	allowed := 0
	for i := 0; i < 100; i++ {
		clock.Advance(time.Second)
		dec, err := l.Check(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if dec.Allow {
			allowed++
		}
		if dec.Remaining < 0 {
			t.Fatalf("Remaining must be reported as non-negative, got %d", dec.Remaining)
		}
	}

	// One token per second at five per request.
	if allowed != 20 {
		t.Errorf("Expected 20 requests allowed over 100s, got %d", allowed)
	}
	if got := storedInt(t, s, "tokens:user_1"); got > 0 || got < -5 {
		t.Errorf("Expected a small deficit to be carried, got %d", got)
	}
}

func TestStoreLimiter_DeficitIsCarried(t *testing.T) {
	ctx := context.Background()
	l, s, clock := newTestLimiter(t)

	s.Set(ctx, "tokens:user_1", "0")
	s.Set(ctx, "last_refill:user_1", strconv.FormatInt(clock.Now().Unix(), 10))

	clock.Advance(time.Second)
	dec, err := l.Check(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allow || dec.Remaining != 0 {
		t.Fatalf("Expected the earned token to admit one request, got %+v", dec)
	}
	if got := storedInt(t, s, "tokens:user_1"); got != -4 {
		t.Errorf("Expected the balance to keep the deficit (1 - 5 = -4), got %d", got)
	}

	clock.Advance(4 * time.Second)
	if dec, _ := l.Check(ctx, "user_1"); dec.Allow {
		t.Error("The deficit must be earned back before the next request")
	}
	clock.Advance(time.Second)
	if dec, _ := l.Check(ctx, "user_1"); !dec.Allow {
		t.Error("Expected a request to be allowed once the balance is positive again")
	}
}

// Race Test
func TestStoreLimiter_ExactlyOneAtCost(t *testing.T) {
	ctx := context.Background()
	l, s, clock := newTestLimiter(t)

	s.Set(ctx, "tokens:user_1", "5")
	s.Set(ctx, "last_refill:user_1", strconv.FormatInt(clock.Now().Unix(), 10))

	var allowed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(50)
	for range 50 {
		go func() {
			defer wg.Done()
			dec, err := l.Check(ctx, "user_1")
			if err == nil && dec.Allow {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 1 {
		t.Errorf("Expected exactly one request allowed at tokens == cost, got %d", got)
	}
}

func TestStoreLimiter_UsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLimiter(t)

	for i := 0; i < 20; i++ {
		l.Check(ctx, "alice")
	}
	dec, err := l.Check(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allow || dec.Remaining != 95 {
		t.Errorf("bob should have a fresh bucket, got %+v", dec)
	}
}

func TestStoreLimiter_WithPrefix(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLimiter(t, WithPrefix("gw:"))

	if _, err := l.Check(ctx, "user_1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "gw:tokens:user_1"); !ok {
		t.Error("Expected key gw:tokens:user_1 to exist")
	}
	if ok, _ := s.Exists(ctx, "tokens:user_1"); ok {
		t.Error("Unprefixed key should not be written")
	}
}

func TestStoreLimiter_StoreFailure(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dec, err := l.Check(ctx, "user_1")
	if err == nil {
		t.Fatal("Expected an error from a cancelled store call, but got nil")
	}
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Expected store.ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in the chain, got %v", err)
	}
	if dec.Allow || dec.Remaining != 0 {
		t.Errorf("Expected zero decision alongside the error, got %+v", dec)
	}
}

func TestStoreLimiter_CorruptValue(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLimiter(t)
	s.Set(ctx, "tokens:user_1", "lots")

	if _, err := l.Check(ctx, "user_1"); err == nil {
		t.Fatal("Expected an error for a non-integer balance")
	}
}

func TestNewStoreLimiter_RejectsBadInput(t *testing.T) {
	if _, err := NewStoreLimiter(nil); err == nil {
		t.Error("Expected an error for a nil store")
	}
	bad := DefaultPolicy()
	bad.Cost = 0
	if _, err := NewStoreLimiter(store.NewMemoryStore(), WithPolicy(bad)); err == nil {
		t.Error("Expected an error for an invalid policy")
	}
}

func BenchmarkStoreLimiter_Check(b *testing.B) {
	ctx := context.Background()
	p := Policy{MaxTokens: 1_000_000, RefillRate: 1000, Cost: 1}
	l, err := NewStoreLimiter(store.NewMemoryStore(), WithPolicy(p))
	if err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		l.Check(ctx, "user_1")
	}
}
