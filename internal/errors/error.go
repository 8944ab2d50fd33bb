package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrTenantMissing     = errors.New("tenant is missing")
	ErrConnectionTimeout = errors.New("connection timeout")

	// signature errors
	ErrSignatureMissing       = errors.New("signature missing")
	ErrSignatureInvalid       = errors.New("signature invalid")
	ErrSignatureExpired       = errors.New("signature timestamp outside allowed window")
	ErrSignatureNotConfigured = errors.New("signing secret not configured")

	// resolution errors
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrDocumentNotFound = errors.New("document not found")

	// ingestion errors
	ErrDuplicateDelivery = errors.New("duplicate delivery")
	ErrRecordNotPending  = errors.New("ingestion record is not pending")

	// storage errors
	ErrQuotaExceeded       = errors.New("storage quota exceeded")
	ErrStorageUploadFailed = errors.New("storage upload failed")
)
