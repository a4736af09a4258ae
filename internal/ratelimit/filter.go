// Package ratelimit holds admission filters consulted before a join is processed.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-waitlist/internal/domain"
)

// Filter decides whether a join attempt may proceed. A rejection returns an
// error wrapping domain.ErrRateLimited.
type Filter interface {
	Allow(ctx context.Context, eventID, userID string) error
}

// Noop admits every request.
type Noop struct{}

// Allow always returns nil.
func (Noop) Allow(context.Context, string, string) error { return nil }

// incrWindowScript increments the counter and gives it a TTL in the same
// atomic step. Keys left without a TTL are repaired on the next hit.
const incrWindowScript = `
local count = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count`

// RedisWindow is a fixed-window per-user counter kept in Redis.
type RedisWindow struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisWindow allows limit joins per user per window.
func NewRedisWindow(client redis.Cmdable, limit int, window time.Duration, logger *zap.Logger) *RedisWindow {
	return &RedisWindow{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "waitlist:join",
		logger: logger,
	}
}

// Allow increments the user's counter. Redis errors fail open.
func (f *RedisWindow) Allow(ctx context.Context, eventID, userID string) error {
	key := fmt.Sprintf("%s:%s", f.prefix, userID)

	count, err := f.client.Eval(ctx, incrWindowScript, []string{key}, f.window.Milliseconds()).Int64()
	if err != nil {
		f.logger.Warn("rate limit counter unavailable; admitting", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if count > f.limit {
		return fmt.Errorf("%w: %d joins in %s", domain.ErrRateLimited, count, f.window)
	}
	return nil
}
