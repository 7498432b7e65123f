package rateLimit

import (
	"context"
	"strconv"
	"time"

	redisadapter "github.com/robertarktes/venue-ticketing/internal/adapters/redis"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

// RateLimiter is a fixed-window counter per key, shared by all API replicas.
type RateLimiter struct {
	redis *redisadapter.Cache
	now   func() time.Time
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis, now: time.Now}
}

// Allow counts one request against key and reports whether it fits in rate
// requests per period. Requests are refused when redis cannot be reached.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	window := rl.now().UnixNano() / int64(period)
	fullKey := "rl:" + key + ":" + strconv.FormatInt(window, 10)

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false
	}

	if incr.Val() > int64(rate) {
		observability.RateLimitExceeded.Inc()
		return false
	}
	return true
}
