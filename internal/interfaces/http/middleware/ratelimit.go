package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/internal/shared/utils"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

// RateLimiter is a fixed-window counter in Redis keyed by route and client
// IP, so every instance sharing the Redis shares one budget per route.
type RateLimiter struct {
	redisClient *redis.Client
	limit       int64
	window      time.Duration
	logger      logger.Interface
	now         func() time.Time
}

// NewRateLimiter allows limit requests per window. Windows shorter than a
// second are rounded up to one.
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, log logger.Interface) *RateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RateLimiter{
		redisClient: redisClient,
		limit:       int64(limit),
		window:      window,
		logger:      log,
		now:         time.Now,
	}
}

// Limit enforces the budget. Requests pass unmetered while Redis is down.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	seconds := int64(rl.window / time.Second)

	return func(c *gin.Context) {
		now := rl.now().Unix()
		bucket := now / seconds
		key := fmt.Sprintf("ratelimit:%s:%s:%d", c.FullPath(), c.ClientIP(), bucket)

		ctx := c.Request.Context()
		pipe := rl.redisClient.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window+time.Second)
		if _, err := pipe.Exec(ctx); err != nil {
			rl.logger.Warnw("rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		count := incr.Val()
		c.Header(HeaderRateLimitLimit, strconv.FormatInt(rl.limit, 10))
		c.Header(HeaderRateLimitRemaining, strconv.FormatInt(max(rl.limit-count, 0), 10))

		if count > rl.limit {
			retryAfter := (bucket+1)*seconds - now
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
