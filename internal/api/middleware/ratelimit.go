package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"bank-api/internal/config"
)

// rateLimiter is a simple sliding-window-per-client-IP limiter, the same
// shape as the teacher's: good enough for a single-process deployment,
// where it runs in front of the command pipeline rather than in front of
// individual account operations.
type rateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
}

func RateLimit(cfg *config.Config) gin.HandlerFunc {
	limiter := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    cfg.RateLimit.RequestsPerMinute,
		window:   cfg.RateLimit.Window,
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		limiter.mutex.Lock()
		defer limiter.mutex.Unlock()

		now := time.Now()
		if reqs, exists := limiter.requests[clientIP]; exists {
			var valid []time.Time
			for _, t := range reqs {
				if now.Sub(t) < limiter.window {
					valid = append(valid, t)
				}
			}
			limiter.requests[clientIP] = valid
		}

		if len(limiter.requests[clientIP]) >= limiter.limit {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":        "rate_limit_exceeded",
				"message":     "rate limit exceeded, try again later",
				"retry_after": int(limiter.window.Seconds()),
			})
			c.Abort()
			return
		}

		limiter.requests[clientIP] = append(limiter.requests[clientIP], now)
		c.Next()
	}
}
