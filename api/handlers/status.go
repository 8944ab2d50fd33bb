package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	apierrors "github.com/customeros/bccstack/api/errors"
	"github.com/customeros/bccstack/interfaces"
	bccerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

// CaptureStatus handles GET /v1/inbound/status for the authenticated tenant.
func CaptureStatus(statusService interfaces.CaptureStatusService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "CaptureStatus")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		status, err := statusService.GetStatus(ctx, utils.GetTenantFromContext(ctx))
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, bccerrors.ErrTenantMissing) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": apierrors.CodeUnauthorized})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": apierrors.CodeInternal})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
