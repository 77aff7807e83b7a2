package limiter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unsungfields/gateway/pkg/store"
)

//go:embed token_bucket.lua
var tokenBucketSource string

var tokenBucketScript = redis.NewScript(tokenBucketSource)

// RedisLimiter runs refill and consume as a single Lua script on the Redis
// server, so concurrent checks from any number of replicas never double-count
// a refill or overdraw the bucket.
type RedisLimiter struct {
	client redis.UniversalClient
	opts   options
}

// NewRedisLimiter pings Redis and preloads the script.
func NewRedisLimiter(client redis.UniversalClient, opts ...Option) (*RedisLimiter, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, store.Unavailable("ping", err)
	}
	if err := tokenBucketScript.Load(ctx, client).Err(); err != nil {
		return nil, store.Unavailable("script load", err)
	}

	return &RedisLimiter{
		client: client,
		opts:   o,
	}, nil
}

// Check allows or denies one request for userID.
func (r *RedisLimiter) Check(ctx context.Context, userID string) (dec Decision, err error) {
	start := time.Now()
	defer func() { r.opts.record("check", &dec, err, start) }()

	now := r.opts.now().Unix()
	res, err := r.run(ctx, userID, now, true)
	if err != nil {
		return Decision{}, err
	}

	if !res.allowed {
		return Decision{
			Allow:      false,
			Remaining:  max(res.tokens, 0),
			RetryAfter: time.Duration(res.retryAfter) * time.Second,
			ResetTime:  time.Unix(now+res.retryAfter, 0),
		}, nil
	}
	return Decision{
		Allow:     true,
		Remaining: max(res.tokens, 0),
		ResetTime: time.Unix(now, 0),
	}, nil
}

// Status reports userID's bucket after refilling it.
func (r *RedisLimiter) Status(ctx context.Context, userID string) (st Status, err error) {
	start := time.Now()
	defer func() { r.opts.record("status", nil, err, start) }()

	now := r.opts.now().Unix()
	res, err := r.run(ctx, userID, now, false)
	if err != nil {
		return Status{}, err
	}
	return r.opts.policy.status(bucket{tokens: res.tokens, last: res.last}, now), nil
}

// Refill tops userID's bucket up and returns it.
func (r *RedisLimiter) Refill(ctx context.Context, userID string) (State, error) {
	res, err := r.run(ctx, userID, r.opts.now().Unix(), false)
	if err != nil {
		return State{}, err
	}
	return State{Tokens: res.tokens, LastRefill: time.Unix(res.last, 0)}, nil
}

type scriptResult struct {
	allowed    bool
	tokens     int64
	last       int64
	retryAfter int64
}

func (r *RedisLimiter) run(ctx context.Context, userID string, now int64, consume bool) (scriptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()

	p := r.opts.policy
	mode := "0"
	if consume {
		mode = "1"
	}

	// Run uses EVALSHA and falls back to EVAL when the script cache was
	// flushed (NOSCRIPT).
	result, err := tokenBucketScript.Run(ctx, r.client,
		[]string{r.opts.tokensKey(userID), r.opts.lastRefillKey(userID)},
		p.MaxTokens,                   // ARGV[1]
		p.RefillRate,                  // ARGV[2]
		p.Cost,                        // ARGV[3]
		int64(p.Cooldown/time.Second), // ARGV[4]
		now,                           // ARGV[5]
		mode,                          // ARGV[6]
	).Result()
	if err != nil {
		var replyErr redis.Error
		if errors.As(err, &replyErr) {
			return scriptResult{}, fmt.Errorf("token bucket script: %w", err)
		}
		return scriptResult{}, store.Unavailable("token bucket script", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 4 {
		return scriptResult{}, errors.New("invalid lua response format")
	}

	return scriptResult{
		allowed:    convertToInt(values[0]) == 1,
		tokens:     convertToInt(values[1]),
		last:       convertToInt(values[2]),
		retryAfter: convertToInt(values[3]),
	}, nil
}

func convertToInt(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
