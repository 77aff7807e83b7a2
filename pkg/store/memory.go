package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process CounterStore.
//
// It is safe for concurrent use by multiple goroutines, but its state is local
// to the process and is not shared across replicas. Use RedisStore when several
// gateway instances must see the same counters and keys.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore. Only WithClock is honoured.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := newConfig(opts)
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     cfg.now,
	}
}

// lookup must be called with mu held. Expired entries are evicted lazily.
func (m *MemoryStore) lookup(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, Unavailable("get "+key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	return e.value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return Unavailable("set "+key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: value}
	return nil
}

func (m *MemoryStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("set %s: ttl must be positive, got %s", key, ttl)
	}
	if err := ctx.Err(); err != nil {
		return Unavailable("setex "+key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) DecrBy(ctx context.Context, key string, amount int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, Unavailable("decrby "+key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	var current int64
	if ok {
		n, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("decrby %s: value is not an integer", key)
		}
		current = n
	}
	current -= amount
	// Like Redis, DECRBY keeps the key's TTL.
	e.value = strconv.FormatInt(current, 10)
	m.entries[key] = e
	return current, nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, Unavailable("exists "+key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.lookup(key)
	return ok, nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return Unavailable("del", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("scan "+prefix, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, ok := m.lookup(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Unavailable("ping", err)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
