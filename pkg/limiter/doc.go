// Package limiter meters text-generation requests per user with a token
// bucket kept in a shared counter store.
//
// The primary entry point is the RateLimiter interface:
//
//	dec, err := limiter.Check(ctx, userID)
//
// The returned Decision says whether the request may proceed, how many tokens
// remain, and, when denied, how long the caller must wait (suitable for a
// Retry-After header).
//
// # Overview
//
// Each user owns a bucket:
//
//   - A new user starts with a full bucket of MaxTokens.
//   - The bucket earns RefillRate tokens per elapsed second, capped at
//     MaxTokens. Refill is lazy: it is computed when the bucket is accessed,
//     never by a background ticker.
//   - Every allowed request costs Cost tokens. The stored balance may go
//     negative (down to -Cost); the deficit is earned back before the next
//     request is admitted, which holds the sustained rate at RefillRate/Cost
//     requests per second. Reported balances never go below zero.
//   - With a RefillRate of zero nothing accrues and last_refill stays put.
//   - An exhausted bucket (balance <= 0) is denied until Cooldown has passed
//     since its last refill.
//
// With DefaultPolicy a fresh user's first request leaves 95 tokens.
//
// # Denials
//
// A denied Check does not touch the balance: only allowed requests pay. The
// retry hint is last_refill + Cooldown - now, in whole seconds.
//
// # Backends
//
// Both implementations share the same arithmetic:
//
//   - RedisLimiter: executes refill and consume in one Lua script, atomically
//     on the Redis server. Two concurrent checks against a bucket holding
//     exactly Cost tokens admit exactly one. Use it whenever more than one
//     gateway replica enforces the limit.
//
//   - StoreLimiter: runs the algorithm as separate reads, writes, and an
//     atomic DecrBy over any store.CounterStore. It serializes checks per user
//     inside the process, but across processes the sequence is not
//     transactional. It is what tests and the in-memory development backend use.
//
// # Storage Details
//
// State is kept in two plain integer keys per user, optionally prefixed (see
// WithPrefix):
//
//	tokens:{user_id}       current balance
//	last_refill:{user_id}  last refill time, epoch seconds
//
// The keys have no TTL.
//
// # Context and Error Policy
//
// Every call is bounded by a timeout (default 2s, see WithTimeout) on top of
// the caller's context. Store failures are returned wrapped in
// store.ErrUnavailable; they are never reported as an empty bucket. Whether to
// fail open or closed is up to the caller.
//
// # Configuration
//
// Limiters are configured using the Functional Options pattern:
//
//	l, _ := NewRedisLimiter(client,
//		WithPolicy(DefaultPolicy()),
//		WithPrefix("gateway:"),
//		WithTimeout(500*time.Millisecond),
//		WithRecorder(myMetrics),
//	)
package limiter
