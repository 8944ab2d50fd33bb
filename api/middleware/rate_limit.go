package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "github.com/customeros/bccstack/api/errors"
	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/logger"
)

// IPRateLimitMiddleware throttles by client address before a delivery is
// parsed, so a throttled request never creates a record. A failing limiter
// backend lets traffic through.
func IPRateLimitMiddleware(limiter interfaces.RateLimiter, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		decision, err := limiter.Allow(c.Request.Context(), "ip:"+ip)
		if err != nil {
			log.Warnf("IP rate limiter unavailable for %s: %v", ip, err)
			c.Next()
			return
		}
		if !decision.Allowed {
			seconds := int(decision.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    apierrors.CodeRateLimited,
				"message": "Too many requests",
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Next()
	}
}
