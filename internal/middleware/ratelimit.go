package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/pkg/response"
)

// RateLimiter counts requests per user in fixed Redis windows
type RateLimiter struct {
	redis *redis.Client
	log   logrus.FieldLogger
}

func NewRateLimiter(redisClient *redis.Client, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{redis: redisClient, log: log}
}

// Limit creates a rate limiting middleware
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" || maxRequests <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, userID)
		ctx := c.UserContext()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			rl.log.WithError(err).WithField("key", key).Warn("Rate limiter unavailable")
			return c.Next()
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(maxRequests-int(count)))
		return c.Next()
	}
}

// SubmitLimit guards job submission and retry
func (rl *RateLimiter) SubmitLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("submit", maxPerHour, time.Hour)
}

// UploadLimit guards presentation uploads
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}
