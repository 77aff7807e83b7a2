package limiter

import "time"

// bucket is a user's state in epoch seconds. RedisLimiter runs the same
// arithmetic inside token_bucket.lua; keep the two in step.
type bucket struct {
	tokens int64
	last   int64
	// dirty marks a bucket that differs from what is persisted.
	dirty bool
}

// load builds a bucket from persisted values, defaulting a missing balance to
// a full bucket and a missing timestamp to now.
func (p Policy) load(tokens int64, hasTokens bool, last int64, hasLast bool, now int64) bucket {
	b := bucket{tokens: tokens, last: last}
	if !hasTokens {
		b.tokens = p.MaxTokens
		b.dirty = true
	}
	if !hasLast {
		b.last = now
		b.dirty = true
	}
	if b.tokens > p.MaxTokens {
		b.tokens = p.MaxTokens
		b.dirty = true
	}
	return b
}

// refill adds RefillRate tokens per second elapsed since the last refill,
// capped at MaxTokens. A clock that moved backwards refills nothing, and with a
// zero RefillRate the bucket and its timestamp are left as they are.
func (p Policy) refill(b bucket, now int64) bucket {
	if now <= b.last || p.RefillRate == 0 {
		return b
	}
	elapsed := now - b.last
	b.tokens = min(b.tokens+elapsed*p.RefillRate, p.MaxTokens)
	b.last = now
	b.dirty = true
	return b
}

// take applies one request to a refilled bucket. An exhausted bucket is denied
// while the cooldown after its last refill is running; otherwise the request is
// allowed and Cost is subtracted. The balance may go negative: the deficit has
// to be earned back before the next request, so the sustained rate stays at
// RefillRate/Cost. It never drops below -Cost.
func (p Policy) take(b bucket, now int64) (bucket, Decision) {
	if b.tokens <= 0 {
		if wait := p.cooldownLeft(b, now); wait > 0 {
			return b, Decision{
				Allow:      false,
				Remaining:  0,
				RetryAfter: time.Duration(wait) * time.Second,
				ResetTime:  time.Unix(now+wait, 0),
			}
		}
	}
	b.tokens = max(b.tokens-p.Cost, -p.Cost)
	b.dirty = true
	return b, Decision{
		Allow:     true,
		Remaining: max(b.tokens, 0),
		ResetTime: time.Unix(now, 0),
	}
}

func (p Policy) status(b bucket, now int64) Status {
	if b.tokens > 0 {
		return Status{Tokens: b.tokens}
	}
	return Status{
		Exceeded: true,
		Tokens:   0,
		TimeLeft: time.Duration(max(p.cooldownLeft(b, now), 0)) * time.Second,
	}
}

func (p Policy) cooldownLeft(b bucket, now int64) int64 {
	return b.last + int64(p.Cooldown/time.Second) - now
}

func (b bucket) state() State {
	return State{Tokens: b.tokens, LastRefill: time.Unix(b.last, 0)}
}
