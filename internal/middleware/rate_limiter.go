package middleware

import (
	_ "embed"
	"fmt"
	"net/http"
	"time"

	"todo_auth/internal/observability"
	"todo_auth/internal/response"
	"todo_auth/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

//go:embed rate_limiter.lua
var luaScript string

var tokenBucket = redis.NewScript(luaScript)

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	Capacity   int     // Maximum number of tokens (max requests)
	RefillRate float64 // Tokens refilled per second
}

// KeyFunc names the bucket a request draws from. An empty key skips the
// limiter for that request.
type KeyFunc func(c *gin.Context) (scope, key string)

// ClientIPKey buckets requests by remote address.
func ClientIPKey(c *gin.Context) (string, string) {
	return "ip", IPRateLimiterKey(c.ClientIP())
}

// UserKey buckets requests by the authenticated user. It must run after
// Authenticate.
func UserKey(c *gin.Context) (string, string) {
	u, err := user.FromContext(c)
	if err != nil {
		return "user", ""
	}
	return "user", UserRateLimiterKey(u.ID)
}

// RateLimiterMiddleware implements Token Bucket algorithm using Redis + Lua script.
// A nil client disables limiting.
func RateLimiterMiddleware(redisClient *redis.Client, config *RateLimiterConfig, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		scope, key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}

		now := float64(time.Now().UnixMicro()) / 1e6

		allowed, err := tokenBucket.Run(c.Request.Context(), redisClient, []string{key},
			config.Capacity,
			config.RefillRate,
			now,
		).Int64()
		if err != nil {
			logrus.WithError(err).Error("Failed to execute rate limiter Lua script")
			// Fail open: allow request if Redis fails
			c.Next()
			return
		}

		if allowed == 0 {
			observability.GlobalMetrics.RateLimitedTotal.WithLabelValues(scope).Inc()
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter(config)))
			response.Message(c, http.StatusTooManyRequests, "Too many requests", true)
			c.Abort()
			return
		}

		c.Next()
	}
}

func retryAfter(config *RateLimiterConfig) float64 {
	if config.RefillRate <= 0 {
		return 1
	}
	s := 1.0 / config.RefillRate
	if s < 1 {
		return 1
	}
	return s
}

func IPRateLimiterKey(ip string) string {
	return fmt.Sprintf("rate_limiter:ip:%s", ip)
}

func UserRateLimiterKey(userID string) string {
	return fmt.Sprintf("rate_limiter:user:%s", userID)
}
