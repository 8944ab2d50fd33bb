package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderRequestId = "X-Request-Id"

var requestIdPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// RequestIdMiddleware keeps a well formed incoming X-Request-Id or issues a new one.
func RequestIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(HeaderRequestId)
		if !requestIdPattern.MatchString(requestId) {
			requestId = uuid.NewString()
		}
		c.Set("RequestId", requestId)
		c.Header(HeaderRequestId, requestId)
		c.Next()
	}
}
