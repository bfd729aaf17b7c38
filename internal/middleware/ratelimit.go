package middleware

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// limiterTimeout caps how long a request waits on redis.
	limiterTimeout = 150 * time.Millisecond
	// limiterCooldown is how long the limiter stays off after redis failed.
	limiterCooldown = 5 * time.Second
)

// RateLimitMiddleware counts requests per route and client in fixed windows.
// A nil client or a redis failure lets the request through; after a failure
// redis is not asked again until the cooldown has passed.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	var offUntil atomic.Int64

	return func(c *fiber.Ctx) error {
		if rdb == nil || time.Now().UnixNano() < offUntil.Load() {
			return c.Next()
		}

		key := fmt.Sprintf("rl:%s:%s", c.Path(), c.IP())

		ctx, cancel := context.WithTimeout(context.Background(), limiterTimeout)
		defer cancel()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			offUntil.Store(time.Now().Add(limiterCooldown).UnixNano())
			return c.Next() // fail open
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}
