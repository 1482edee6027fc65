// Package ratelimit implements a distributed token bucket evaluated
// atomically in Redis, so admission decisions stay consistent across server
// processes sharing one backing store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the token bucket parameters.
type Config struct {
	// Burst is the bucket capacity: the number of messages a sender may
	// emit instantaneously from a full bucket.
	Burst int
	// RefillPerSec is the continuous refill rate in tokens per second.
	RefillPerSec float64
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		Burst:        20,
		RefillPerSec: 10,
	}
}

// Result is the outcome of one admission decision.
type Result struct {
	Allowed   bool
	Remaining float64
}

// bucketScript refills and debits a (room, username) bucket in one atomic
// step; two processes racing can never decrement from the same stale token
// count. Buckets are created lazily at capacity and expire after an idle
// period proportional to capacity/refill, which garbage-collects them
// without explicit deletion. A clock reading behind the stored timestamp
// contributes zero refill rather than a negative one.
var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local tokens = capacity
	local ts = now
	local last_ts = redis.call('HGET', key, 'ts')
	if last_ts then
		ts = tonumber(last_ts)
		local last_tokens = tonumber(redis.call('HGET', key, 'tokens'))
		local delta = (now - ts) / 1000.0
		if delta < 0 then
			delta = 0
		end
		tokens = math.min(capacity, last_tokens + delta * refill)
	end

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'ts', now, 'tokens', tokens)
	redis.call('PEXPIRE', key, math.max(1000, math.floor((capacity / refill) * 1000)))
	return {allowed, tostring(tokens)}
`)

// Limiter makes token bucket decisions against Redis.
type Limiter struct {
	client *redis.Client
	config Config
	prefix string
}

// NewLimiter creates a limiter over the shared Redis client.
func NewLimiter(client *redis.Client, config Config, prefix string) *Limiter {
	return &Limiter{
		client: client,
		config: config,
		prefix: prefix,
	}
}

// Allow decides whether the (room, username) pair may send a message now.
// Rejection is a normal admission-control outcome, not an error.
func (l *Limiter) Allow(ctx context.Context, room, username string) (*Result, error) {
	key := l.prefix + room + ":" + username
	return l.decide(ctx, key, time.Now())
}

// decide runs the bucket script at an explicit point in time.
func (l *Limiter) decide(ctx context.Context, key string, now time.Time) (*Result, error) {
	result, err := bucketScript.Run(ctx, l.client, []string{key},
		l.config.Burst,
		l.config.RefillPerSec,
		now.UnixMilli(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected result length: %d", len(result))
	}
	allowedVal, ok := result[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected type for allowed: %T", result[0])
	}
	remainingStr, ok := result[1].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected type for remaining: %T", result[1])
	}
	var remaining float64
	if _, err := fmt.Sscanf(remainingStr, "%g", &remaining); err != nil {
		return nil, fmt.Errorf("unexpected remaining value %q: %w", remainingStr, err)
	}

	return &Result{
		Allowed:   allowedVal == 1,
		Remaining: remaining,
	}, nil
}

// Reset clears the bucket for a (room, username) pair.
func (l *Limiter) Reset(ctx context.Context, room, username string) error {
	return l.client.Del(ctx, l.prefix+room+":"+username).Err()
}

// GetConfig returns the limiter's configuration.
func (l *Limiter) GetConfig() Config {
	return l.config
}
