package ratelimit

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xyz-asif/blindmatch/internal/pkg/response"
)

// KeyFunc picks the bucket a request is counted against
type KeyFunc func(c *gin.Context) string

// ByIP counts requests per client address
func ByIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByUser counts requests per authenticated user, falling back to the client
// address. It reads the "userID" key the auth middleware sets.
func ByUser(c *gin.Context) string {
	if id := c.GetString("userID"); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// Middleware rejects requests over the limit with 429
func Middleware(limiter *RateLimiter, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ByIP
	}
	return func(c *gin.Context) {
		ok, remaining, reset := limiter.Allow(key(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", reset.UTC().Format(time.RFC3339))

		if !ok {
			retry := int(time.Until(reset).Seconds()) + 1
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			response.TooManyRequests(c, "Rate limit exceeded. Try again later.", "RATE_LIMITED")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserBasedMiddleware limits per authenticated user
func UserBasedMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return Middleware(limiter, ByUser)
}
