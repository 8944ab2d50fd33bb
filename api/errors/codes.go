package api_errors

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	internalerrors "github.com/customeros/bccstack/internal/errors"
)

const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeBadInput     = "BAD_INPUT"
	CodeInternal     = "INTERNAL_ERROR"
)

func CodeForKind(kind internalerrors.Kind) string {
	switch kind {
	case internalerrors.KindAuth:
		return CodeUnauthorized
	case internalerrors.KindRateLimit:
		return CodeRateLimited
	case internalerrors.KindValidation:
		return CodeBadInput
	default:
		return CodeInternal
	}
}

// NewErrorBody builds the JSON body for a non-2xx response. Internal error
// text is only exposed for validation failures.
func NewErrorBody(kind internalerrors.Kind, err error) gin.H {
	body := gin.H{"code": CodeForKind(kind)}
	if kind == internalerrors.KindValidation && err != nil {
		body["message"] = err.Error()
		var multi *MultiErrors
		if errors.As(err, &multi) {
			body["fields"] = multi.Fields()
		}
	}
	return body
}
