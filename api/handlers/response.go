package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apierrors "github.com/customeros/bccstack/api/errors"
	"github.com/customeros/bccstack/dto"
	bccerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/tracing"
)

var errRequestTooLarge = errors.New("request body too large")

func respondResult(c *gin.Context, span opentracing.Span, result *dto.CaptureResult) {
	span.LogKV("result.status", string(result.Status), "result.id", result.ID)
	tracing.TagEntity(span, result.ID)
	c.JSON(http.StatusOK, result)
}

// respondError maps a capture failure to its status code. Handled outcomes
// (duplicate, unmatched, rejected) never get here; they are 200s.
func respondError(c *gin.Context, span opentracing.Span, err error) {
	kind := bccerrors.KindOf(err)
	status := kind.HTTPStatus()
	if errors.Is(err, errRequestTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	if kind == bccerrors.KindRateLimit {
		seconds := int(bccerrors.RetryAfterOf(err).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	tracing.TraceErr(span, err)
	span.SetTag("capture.error_kind", kind.String())
	c.AbortWithStatusJSON(status, apierrors.NewErrorBody(kind, err))
}

// readBody reads at most limit bytes of the request body.
func readBody(c *gin.Context, limit int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, bodyError(err)
	}
	return body, nil
}

func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return bccerrors.Validation(errRequestTooLarge)
	}
	return bccerrors.Validation(err)
}
