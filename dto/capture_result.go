package dto

import "github.com/customeros/bccstack/internal/enum"

type CaptureOutcome string

const (
	CaptureOutcomeDuplicate CaptureOutcome = "duplicate"
	CaptureOutcomeUnmatched CaptureOutcome = "unmatched"
	CaptureOutcomeRejected  CaptureOutcome = "rejected"
	CaptureOutcomeProcessed CaptureOutcome = "processed"
)

// Reasons exposed to relays. Plan gating and quota share one reason so a
// sender cannot learn a tenant's plan state.
const (
	RejectReasonCaptureUnavailable = "capture_unavailable"
	RejectReasonSizeExceeded       = "size_exceeded"
)

// CaptureResult is the JSON body returned to a relay after a delivery was handled.
type CaptureResult struct {
	Status             CaptureOutcome `json:"status"`
	ID                 string         `json:"id"`
	Reason             string         `json:"reason,omitempty"`
	Message            string         `json:"message,omitempty"`
	DocumentID         string         `json:"documentId,omitempty"`
	AttachmentAccepted *bool          `json:"attachmentAccepted,omitempty"`

	RecordStatus enum.IngestionStatus `json:"-"`
}

func DuplicateResult(id string, status enum.IngestionStatus) *CaptureResult {
	return &CaptureResult{Status: CaptureOutcomeDuplicate, ID: id, RecordStatus: status}
}

func UnmatchedResult(id string) *CaptureResult {
	return &CaptureResult{Status: CaptureOutcomeUnmatched, ID: id, RecordStatus: enum.IngestionStatusUnmatched}
}

func ProcessedResult(id, documentID string, attachmentAccepted bool) *CaptureResult {
	return &CaptureResult{
		Status:             CaptureOutcomeProcessed,
		ID:                 id,
		DocumentID:         documentID,
		AttachmentAccepted: &attachmentAccepted,
		RecordStatus:       enum.IngestionStatusProcessed,
	}
}

func RejectedResult(id string, status enum.IngestionStatus) *CaptureResult {
	result := &CaptureResult{Status: CaptureOutcomeRejected, ID: id, RecordStatus: status}
	switch status {
	case enum.IngestionStatusRejectedSizeExceeded:
		result.Reason = RejectReasonSizeExceeded
		result.Message = "Attachment exceeds the maximum allowed size"
	default:
		result.Reason = RejectReasonCaptureUnavailable
		result.Message = "Inbound capture is not available for this address"
	}
	return result
}
