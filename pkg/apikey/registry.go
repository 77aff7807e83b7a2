package apikey

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/pkg/apperrors"
	"github.com/unsungfields/gateway/pkg/store"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Registry manages API keys in a CounterStore.
//
// Records are stored as api_key:{owner}:{key} -> display name. A reverse
// index api_key_owner:{key} -> owner with the same TTL lets Authenticate
// resolve a presented key without scanning.
type Registry struct {
	store  store.CounterStore
	ttl    time.Duration
	tag    string
	random io.Reader
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithTag overrides DefaultTag.
func WithTag(tag string) Option {
	return func(r *Registry) {
		if tag = strings.TrimSpace(tag); tag != "" {
			r.tag = tag
		}
	}
}

// WithRandom replaces crypto/rand as the source of key material.
func WithRandom(src io.Reader) Option {
	return func(r *Registry) {
		if src != nil {
			r.random = src
		}
	}
}

// WithClock replaces time.Now when computing expiry times.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry constructs a Registry backed by s.
func NewRegistry(s store.CounterStore, opts ...Option) *Registry {
	r := &Registry{
		store:  s,
		ttl:    DefaultTTL,
		tag:    DefaultTag,
		random: rand.Reader,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "api-key-registry").Logger()
	return r
}

// Issue generates a key for owner labelled displayName and stores it with the
// registry TTL. The returned Key is the only time the full value is exposed.
func (r *Registry) Issue(ctx context.Context, owner, displayName string) (Key, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Key{}, apperrors.Validation("owner", "owner is required")
	}
	if strings.Contains(owner, ":") {
		return Key{}, apperrors.Validation("owner", "owner must not contain ':'")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Key{}, apperrors.Validation("display_name", "Display name is required")
	}

	value, err := r.generate()
	if err != nil {
		return Key{}, err
	}

	if err := r.store.SetWithTTL(ctx, recordKey(owner, value), displayName, r.ttl); err != nil {
		return Key{}, fmt.Errorf("store api key: %w", err)
	}
	if err := r.store.SetWithTTL(ctx, indexKey(value), owner, r.ttl); err != nil {
		// Without its index the key could never authenticate; drop the record.
		if delErr := r.store.Delete(context.WithoutCancel(ctx), recordKey(owner, value)); delErr != nil {
			r.logger.Warn().Err(delErr).Str("owner", owner).Msg("failed to roll back api key record")
		}
		return Key{}, fmt.Errorf("index api key: %w", err)
	}

	r.logger.Debug().Str("owner", owner).Str("display_name", displayName).Msg("api key issued")
	return Key{
		Value:       value,
		Owner:       owner,
		DisplayName: displayName,
		ExpiresAt:   r.now().Add(r.ttl),
	}, nil
}

// List returns the live keys of owner, sorted by display name. Keys that
// expire between the scan and the read are skipped.
func (r *Registry) List(ctx context.Context, owner string) ([]Summary, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, apperrors.Validation("owner", "owner is required")
	}

	prefix := ownerPrefix(owner)
	keys, err := r.store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan api keys: %w", err)
	}

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		value := strings.TrimPrefix(k, prefix)
		// A longer owner sharing this prefix, e.g. "alice" vs "alice:x".
		if strings.Contains(value, ":") {
			continue
		}
		name, found, err := r.store.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read api key: %w", err)
		}
		if !found {
			continue
		}
		out = append(out, Summary{DisplayName: name, Preview: preview(value)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].Preview < out[j].Preview
	})
	return out, nil
}

// Revoke deletes owner's key. It fails with ErrNotFound when the key was never
// issued to owner, was already revoked, or has expired.
func (r *Registry) Revoke(ctx context.Context, owner, value string) error {
	owner = strings.TrimSpace(owner)
	value = strings.TrimSpace(value)
	if owner == "" || value == "" {
		return ErrNotFound
	}

	rk := recordKey(owner, value)
	ok, err := r.store.Exists(ctx, rk)
	if err != nil {
		return fmt.Errorf("lookup api key: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := r.store.Delete(ctx, rk, indexKey(value)); err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}

	r.logger.Debug().Str("owner", owner).Msg("api key revoked")
	return nil
}

// Authenticate resolves a presented key to its owner.
func (r *Registry) Authenticate(ctx context.Context, value string) (string, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, r.tag) || len(value) != len(r.tag)+secretLength {
		return "", ErrNotFound
	}

	owner, found, err := r.store.Get(ctx, indexKey(value))
	if err != nil {
		return "", fmt.Errorf("lookup api key: %w", err)
	}
	if !found {
		return "", ErrNotFound
	}

	// The record is the source of truth; the index may outlive it by a few
	// milliseconds around expiry.
	ok, err := r.store.Exists(ctx, recordKey(owner, value))
	if err != nil {
		return "", fmt.Errorf("lookup api key: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

// generate draws secretLength characters from alphabet without modulo bias.
func (r *Registry) generate() (string, error) {
	const limit = 256 - 256%len(alphabet)

	var sb strings.Builder
	sb.Grow(len(r.tag) + secretLength)
	sb.WriteString(r.tag)

	buf := make([]byte, secretLength*2)
	for n := 0; n < secretLength; {
		if _, err := io.ReadFull(r.random, buf); err != nil {
			return "", apperrors.Wrap(apperrors.KindInternal, "generate api key", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			sb.WriteByte(alphabet[int(b)%len(alphabet)])
			if n++; n == secretLength {
				break
			}
		}
	}
	return sb.String(), nil
}
