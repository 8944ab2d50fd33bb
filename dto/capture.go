package dto

import (
	"time"

	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/models"
)

// SignatureMaterial carries what a relay sent to prove authenticity.
type SignatureMaterial struct {
	Body      []byte
	Timestamp string
	Token     string
	Signature string
}

type AddressMatch struct {
	Address          string
	TenantShortID    string
	DocumentPublicID string
}

// AddressResolution is the outcome of scanning recipients. Tenant and Document
// are set only when Matched is true.
type AddressResolution struct {
	Matched    bool
	Match      *AddressMatch
	Tenant     *models.Tenant
	Document   *models.Document
	Diagnostic string
}

type EntitlementDecision struct {
	Allowed bool
	// Status is the terminal rejection status when Allowed is false.
	Status enum.IngestionStatus
	Reason string
}

type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// CaptureStatusResponse is what a tenant may see about its own captures.
type CaptureStatusResponse struct {
	HasCapture     bool       `json:"hasCapture"`
	LastCapturedAt *time.Time `json:"lastCapturedAt"`
	LastSubject    *string    `json:"lastSubject"`
}

// InboundCaptureCompleted is published once a record reaches a terminal status.
type InboundCaptureCompleted struct {
	RecordID           string `json:"recordId"`
	Provider           string `json:"provider"`
	TenantID           string `json:"tenantId,omitempty"`
	DocumentID         string `json:"documentId,omitempty"`
	Status             string `json:"status"`
	AttachmentAccepted bool   `json:"attachmentAccepted"`
	ParsedLink         bool   `json:"parsedLink"`
	Rejected           bool   `json:"rejected"`
}
