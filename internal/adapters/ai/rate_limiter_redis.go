package ai

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"kitakita/pkg/errors"
)

// RedisSlidingWindowLimiter shares one request budget across every running
// instance via a Redis sorted set of call timestamps. This is the answer to
// per-instance limiter state: N replicas no longer get N budgets against the
// same remote gateway.
type RedisSlidingWindowLimiter struct {
	client *redis.Client
	key    string
	budget int
	window time.Duration
	script *redis.Script
}

// Sliding window over a sorted set (atomic).
// KEYS[1] = window key
// ARGV[1] = window start (unix micros)
// ARGV[2] = now (unix micros)
// ARGV[3] = budget
// Returns {1, 0} when admitted, {0, micros_until_oldest_exits} when full.
const luaSlidingWindowScript = `
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local budget = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local count = redis.call('ZCARD', key)
if count < budget then
    redis.call('ZADD', key, now, now)
    redis.call('PEXPIRE', key, 120000)
    return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) - window_start
return {0, wait}
`

// NewRedisSlidingWindowLimiter creates a distributed limiter with a
// 60-second window.
func NewRedisSlidingWindowLimiter(client *redis.Client, budget int) *RedisSlidingWindowLimiter {
	if budget < 1 {
		budget = 1
	}
	return &RedisSlidingWindowLimiter{
		client: client,
		key:    "rate_limit:ai:gemini",
		budget: budget,
		window: time.Minute,
		script: redis.NewScript(luaSlidingWindowScript),
	}
}

// Wait blocks until a slot is available or the context is cancelled.
func (l *RedisSlidingWindowLimiter) Wait(ctx context.Context) error {
	for {
		admitted, wait, err := l.tryAdmit(ctx)
		if err != nil {
			return errors.Wrap(err, "redis rate limiter")
		}
		if admitted {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "rate limiter wait cancelled")
		case <-time.After(wait):
		}
	}
}

// Allow checks if a call can proceed without blocking. Denies on Redis errors.
func (l *RedisSlidingWindowLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	admitted, _, err := l.tryAdmit(ctx)
	if err != nil {
		return false
	}
	return admitted
}

// Limit returns the budget in requests per minute.
func (l *RedisSlidingWindowLimiter) Limit() float64 {
	return float64(l.budget) * float64(time.Minute) / float64(l.window)
}

func (l *RedisSlidingWindowLimiter) tryAdmit(ctx context.Context) (bool, time.Duration, error) {
	now := time.Now()
	windowStart := now.Add(-l.window).UnixMicro()

	result, err := l.script.Run(ctx, l.client, []string{l.key},
		windowStart, now.UnixMicro(), l.budget).Int64Slice()
	if err != nil {
		return false, 0, errors.Wrap(err, "failed to execute sliding window script")
	}
	if len(result) != 2 {
		return false, 0, errors.Newf("unexpected script result length %d", len(result))
	}

	if result[0] == 1 {
		return true, 0, nil
	}

	wait := time.Duration(result[1]) * time.Microsecond
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait, nil
}

// Reset clears the window state (useful for testing).
func (l *RedisSlidingWindowLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}
