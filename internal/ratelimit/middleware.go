package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// KeyFunc derives the caller key for a request
type KeyFunc func(c *gin.Context) string

// ClientIP keys requests by the caller's network address
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// Middleware enforces the limiter on a route group. Every allowed response
// carries X-RateLimit-* headers; rejected ones get 429 and Retry-After.
// A failing store lets the request through.
func Middleware(l *Limiter, route string, key KeyFunc, log *logrus.Logger, onLimited func(route string)) gin.HandlerFunc {
	if key == nil {
		key = ClientIP
	}
	return func(c *gin.Context) {
		k := route + ":" + key(c)
		res, err := l.Allow(c.Request.Context(), k)
		if err != nil {
			log.WithError(err).WithField("route", route).Warn("Rate limit store unavailable, allowing request")
			c.Next()
			return
		}

		if !res.Allowed {
			if onLimited != nil {
				onLimited(route)
			}
			retryAfter := res.RetryAfterSeconds()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"message":    "Too many requests",
					"code":       "RATE_LIMIT_EXCEEDED",
					"retryAfter": retryAfter,
				},
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", res.ResetAt.UTC().Format(time.RFC3339))
		c.Next()
	}
}
