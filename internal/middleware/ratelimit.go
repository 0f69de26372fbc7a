package middleware

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jack/golang-campaign-redirect-service/internal/config"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a sliding window rate limiter using Redis
type RateLimiter struct {
	client   *redis.Client
	requests int
	duration time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client, cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client:   client,
		requests: cfg.Requests,
		duration: cfg.Duration,
		now:      time.Now,
	}
}

// Middleware returns a Gin middleware limiting requests per client IP. Each scope
// (e.g. "api", "redirect") keeps its own window.
func (rl *RateLimiter) Middleware(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := "ratelimit:" + scope + ":" + ip

		ctx := c.Request.Context()

		now := rl.now()
		windowStart := now.Add(-rl.duration).UnixNano()

		pipe := rl.client.Pipeline()
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
		countCmd := pipe.ZCard(ctx, key)

		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			// fail-open：Redis 出錯時不擋請求，但必須留下 log 方便追查
			log.Printf("rate_limit redis error (precheck): ip=%s path=%s err=%v", ip, c.Request.URL.Path, err)
			c.Next()
			return
		}

		count := countCmd.Val()
		reset := strconv.FormatInt(now.Add(rl.duration).Unix(), 10)

		if count >= int64(rl.requests) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", reset)
			c.Header("Retry-After", strconv.Itoa(int(rl.duration.Seconds())))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests. Please try again later.",
			})
			return
		}

		// members must be unique, two requests can share a nanosecond
		pipe = rl.client.Pipeline()
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString(),
		})
		pipe.Expire(ctx, key, rl.duration)
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			// fail-open：寫入窗口失敗時不影響本次請求，但需要記錄
			log.Printf("rate_limit redis error (record): ip=%s path=%s err=%v", ip, c.Request.URL.Path, err)
		}

		remaining := rl.requests - int(count) - 1
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", reset)

		c.Next()
	}
}
