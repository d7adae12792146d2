package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a Redis-backed fixed window limiter shared by all
// instances. Requests are counted per user, or per IP before Auth.
type RateLimiter struct {
	rdb     *redis.Client
	maxReqs int
	window  time.Duration
}

func NewRateLimiter(rdb *redis.Client, maxReqs int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rdb:     rdb,
		maxReqs: maxReqs,
		window:  window,
	}
}

func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		subject := UserID(c)
		if subject == "" {
			subject = "ip:" + c.IP()
		}
		key := fmt.Sprintf("ratelimit:%s", subject)
		ctx := c.Context()

		var incr *redis.IntCmd
		var ttl *redis.DurationCmd
		_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, rl.window)
			ttl = pipe.TTL(ctx, key)
			return nil
		})
		if err != nil {
			// Fail open when Redis is unavailable.
			slog.Warn("rate limiter unavailable", "error", err)
			return c.Next()
		}

		count := incr.Val()
		reset := int(ttl.Val().Seconds())

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.maxReqs))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(0, int64(rl.maxReqs)-count)))
		c.Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

		if int(count) > rl.maxReqs {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"retry_after": reset,
			})
		}

		return c.Next()
	}
}
