package bccstack_errors

import "errors"

var (
	ErrTenantNotSet     = errors.New("tenant not set on context")
	ErrMissingAuthToken = errors.New("missing bearer token")
	ErrInvalidAuthToken = errors.New("invalid bearer token")
)
