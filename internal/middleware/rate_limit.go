package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/logger"
)

// HitCounter counts hits on key inside a fixed window and reports the window's remaining TTL.
type HitCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimit allows limit requests per window for each authenticated user, falling back to
// the client IP. The limiter fails open when the counter is unreachable.
func RateLimit(counter HitCounter, prefix string, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString(ContextUserID)
		if subject == "" {
			subject = c.ClientIP()
		}

		count, ttl, err := counter.Hit(c.Request.Context(), prefix+":"+subject, window)
		if err != nil {
			logger.FromContext(c.Request.Context(), nil).Warn("rate limiter unavailable", zap.String("prefix", prefix), zap.Error(err))
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			retry := int(ttl.Round(time.Second).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests, slow down",
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}
