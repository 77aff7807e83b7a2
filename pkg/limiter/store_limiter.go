package limiter

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/unsungfields/gateway/pkg/store"
)

const lockStripes = 64

// StoreLimiter runs the token bucket over CounterStore primitives: a read of
// both keys, a persisted refill, then an atomic DecrBy.
//
// Checks for the same user are serialized by an in-process lock, so the
// limiter is exact within one process. Across processes sharing a store the
// read-refill-decrement sequence is not transactional and two instances can
// both admit a request from an almost empty bucket. Use RedisLimiter when
// several replicas enforce the same limit.
type StoreLimiter struct {
	store store.CounterStore
	opts  options
	locks [lockStripes]sync.Mutex
}

// NewStoreLimiter constructs a StoreLimiter on top of s.
func NewStoreLimiter(s store.CounterStore, opts ...Option) (*StoreLimiter, error) {
	if s == nil {
		return nil, errors.New("limiter: store is required")
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &StoreLimiter{store: s, opts: o}, nil
}

func (l *StoreLimiter) lock(userID string) func() {
	h := fnv.New32a()
	h.Write([]byte(userID))
	mu := &l.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Check allows or denies one request for userID.
func (l *StoreLimiter) Check(ctx context.Context, userID string) (dec Decision, err error) {
	start := time.Now()
	defer func() { l.opts.record("check", &dec, err, start) }()

	ctx, cancel := context.WithTimeout(ctx, l.opts.timeout)
	defer cancel()
	unlock := l.lock(userID)
	defer unlock()

	now := l.opts.now().Unix()
	b, err := l.refill(ctx, userID, now)
	if err != nil {
		return Decision{}, err
	}

	_, dec = l.opts.policy.take(b, now)
	if !dec.Allow {
		return dec, nil
	}

	key := l.opts.tokensKey(userID)
	remaining, err := l.store.DecrBy(ctx, key, l.opts.policy.Cost)
	if err != nil {
		return Decision{}, err
	}
	if floor := -l.opts.policy.Cost; remaining < floor {
		if err := l.store.Set(ctx, key, strconv.FormatInt(floor, 10)); err != nil {
			return Decision{}, err
		}
	}
	dec.Remaining = max(remaining, 0)
	return dec, nil
}

// Status reports userID's bucket after refilling it.
func (l *StoreLimiter) Status(ctx context.Context, userID string) (st Status, err error) {
	start := time.Now()
	defer func() { l.opts.record("status", nil, err, start) }()

	ctx, cancel := context.WithTimeout(ctx, l.opts.timeout)
	defer cancel()
	unlock := l.lock(userID)
	defer unlock()

	now := l.opts.now().Unix()
	b, err := l.refill(ctx, userID, now)
	if err != nil {
		return Status{}, err
	}
	return l.opts.policy.status(b, now), nil
}

// Refill tops userID's bucket up and returns it.
func (l *StoreLimiter) Refill(ctx context.Context, userID string) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.timeout)
	defer cancel()
	unlock := l.lock(userID)
	defer unlock()

	b, err := l.refill(ctx, userID, l.opts.now().Unix())
	if err != nil {
		return State{}, err
	}
	return b.state(), nil
}

// refill must be called with the user's lock held.
func (l *StoreLimiter) refill(ctx context.Context, userID string, now int64) (bucket, error) {
	tokensKey := l.opts.tokensKey(userID)
	lastKey := l.opts.lastRefillKey(userID)

	tokens, hasTokens, err := l.readInt(ctx, tokensKey)
	if err != nil {
		return bucket{}, err
	}
	last, hasLast, err := l.readInt(ctx, lastKey)
	if err != nil {
		return bucket{}, err
	}

	p := l.opts.policy
	b := p.refill(p.load(tokens, hasTokens, last, hasLast, now), now)
	if !b.dirty {
		return b, nil
	}
	if err := l.store.Set(ctx, tokensKey, strconv.FormatInt(b.tokens, 10)); err != nil {
		return bucket{}, err
	}
	if err := l.store.Set(ctx, lastKey, strconv.FormatInt(b.last, 10)); err != nil {
		return bucket{}, err
	}
	b.dirty = false
	return b, nil
}

func (l *StoreLimiter) readInt(ctx context.Context, key string) (int64, bool, error) {
	raw, found, err := l.store.Get(ctx, key)
	if err != nil || !found {
		return 0, false, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("limiter: corrupt value at %s: %w", key, err)
	}
	return n, true, nil
}
