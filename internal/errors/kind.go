package errors

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Kind is the closed set of failure categories a capture can end in.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindRateLimit  Kind = "rate_limit"
	KindValidation Kind = "validation"
	KindQuota      Kind = "quota"
	KindTransient  Kind = "transient"
	KindUnknown    Kind = "unknown"
)

func (k Kind) String() string {
	return string(k)
}

// HTTPStatus maps a failure kind to the status code returned to a relay.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type CaptureError struct {
	Kind       Kind
	Err        error
	RetryAfter time.Duration
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

func New(kind Kind, err error) *CaptureError {
	return &CaptureError{Kind: kind, Err: err}
}

func Auth(err error) *CaptureError {
	return New(KindAuth, err)
}

func Validation(err error) *CaptureError {
	return New(KindValidation, err)
}

func Transient(err error) *CaptureError {
	return New(KindTransient, err)
}

func RateLimited(retryAfter time.Duration) *CaptureError {
	return &CaptureError{Kind: KindRateLimit, Err: errors.New("rate limit exceeded"), RetryAfter: retryAfter}
}

// KindOf returns the kind carried by err, or KindUnknown for plain errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var captureErr *CaptureError
	if errors.As(err, &captureErr) {
		return captureErr.Kind
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return KindQuota
	}
	return KindUnknown
}

// RetryAfterOf returns the retry hint carried by a rate limit error.
func RetryAfterOf(err error) time.Duration {
	var captureErr *CaptureError
	if errors.As(err, &captureErr) {
		return captureErr.RetryAfter
	}
	return 0
}
