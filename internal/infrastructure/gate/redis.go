package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// reserveScript atomically evicts expired slots, picks the earliest release
// time that keeps the window under the limit, and records the new slot. It
// returns the release time in microseconds.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local release = now
local count = redis.call('ZCARD', key)
if count >= max then
  local slots = redis.call('ZRANGE', key, count - max, count - max, 'WITHSCORES')
  release = tonumber(slots[2]) + window
end

redis.call('ZADD', key, release, release .. '-' .. redis.call('INCR', key .. ':seq'))
redis.call('PEXPIRE', key, math.ceil((release - now + window) / 1000) + 1000)
redis.call('PEXPIRE', key .. ':seq', math.ceil((release - now + window) / 1000) + 1000)

return release
`)

// RedisGate is a sliding-window request gate shared across processes,
// implemented with a sorted set of slot timestamps per connection. All
// client instances for one connection converge on a single quota.
type RedisGate struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisGate creates a gate backed by the given Redis client.
func NewRedisGate(client *redis.Client, logger zerolog.Logger) *RedisGate {
	return &RedisGate{client: client, logger: logger}
}

// Acquire reserves a slot in the shared window and sleeps until it opens.
func (g *RedisGate) Acquire(ctx context.Context, key string, limit domain.RateLimit) error {
	if limit.Requests <= 0 || limit.Window <= 0 {
		return nil
	}

	now := time.Now()
	res, err := reserveScript.Run(ctx, g.client,
		[]string{"ratelimit:" + key},
		now.UnixMicro(),
		limit.Window.Microseconds(),
		limit.Requests,
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to reserve rate-limit slot: %w", err)
	}

	release := time.UnixMicro(res)
	wait := time.Until(release)
	if wait <= 0 {
		return nil
	}

	g.logger.Debug().Str("key", key).Dur("wait", wait).Msg("Shared rate limit reached, delaying request")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
