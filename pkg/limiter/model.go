package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/unsungfields/gateway/pkg/apperrors"
)

// Policy defines the bucket shape shared by every user.
type Policy struct {
	// MaxTokens is the bucket capacity and the balance of a new user.
	MaxTokens int64
	// RefillRate is the number of tokens earned per elapsed second.
	RefillRate int64
	// Cost is the number of tokens one metered request consumes.
	Cost int64
	// Cooldown is how long an exhausted user waits after the last refill.
	Cooldown time.Duration
}

// DefaultPolicy returns 100 tokens, refilled at 1 token/s, 5 tokens per
// request, and a 30s cooldown once exhausted.
func DefaultPolicy() Policy {
	return Policy{
		MaxTokens:  100,
		RefillRate: 1,
		Cost:       5,
		Cooldown:   30 * time.Second,
	}
}

// Validate reports whether p describes a usable bucket.
func (p Policy) Validate() error {
	switch {
	case p.MaxTokens <= 0:
		return errors.New("limiter: MaxTokens must be positive")
	case p.RefillRate < 0:
		return errors.New("limiter: RefillRate must not be negative")
	case p.Cost <= 0:
		return errors.New("limiter: Cost must be positive")
	case p.Cooldown < 0:
		return errors.New("limiter: Cooldown must not be negative")
	}
	return nil
}

// State is the persisted bucket of one user after a refill.
type State struct {
	Tokens     int64
	LastRefill time.Time
}

// Decision is the outcome of a Check.
type Decision struct {
	Allow bool
	// Remaining is the token balance after the decision was applied.
	Remaining int64
	// RetryAfter is 0 when allowed; when denied it is the time left in the
	// cooldown.
	RetryAfter time.Duration
	ResetTime  time.Time
}

// Err returns nil for an allowed decision and a rate limited error carrying
// the retry hint otherwise.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	return apperrors.RateLimited(d.RetryAfter)
}

// Status is a read of a user's bucket for display.
type Status struct {
	Exceeded bool
	// Tokens is the available balance, reported as 0 once exceeded.
	Tokens   int64
	TimeLeft time.Duration
}

// Label returns "exceeded" or "available".
func (s Status) Label() string {
	if s.Exceeded {
		return "exceeded"
	}
	return "available"
}

// RateLimiter meters requests per user.
type RateLimiter interface {
	// Check refills the user's bucket and consumes one request's cost when
	// allowed. A denied check leaves the balance untouched.
	Check(ctx context.Context, userID string) (Decision, error)
	// Status refills the bucket and reports it without consuming.
	Status(ctx context.Context, userID string) (Status, error)
	// Refill tops the bucket up for elapsed time and returns it.
	Refill(ctx context.Context, userID string) (State, error)
}
