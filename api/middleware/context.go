package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/customeros/bccstack/internal/utils"
)

// CustomContextMiddleware copies request id and tenant from the gin context into
// the request context. It must run after RequestIdMiddleware and any auth.
func CustomContextMiddleware(appSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.WithCustomContextFromGinRequest(c, appSource)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
