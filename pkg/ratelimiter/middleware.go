package ratelimiter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for rate limiting. onReject, when set, is
// called with the client key of every rejected request.
func (rl *RateLimiter) Middleware(onReject func(c *gin.Context, key string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ClientKey(c.Request)

		allowed, count, resetTime := rl.Allow(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(resetTime.Sub(rl.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			if onReject != nil {
				onReject(c, key)
			}

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":     "Rate limit exceeded",
				"code":      "RATE_LIMIT_EXCEEDED",
				"details":   "Maximum " + strconv.Itoa(rl.limit) + " requests per " + rl.window.String() + " allowed.",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}
