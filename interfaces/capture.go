package interfaces

import (
	"context"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/models"
)

type SignatureVerifier interface {
	Provider() enum.Provider
	Verify(ctx context.Context, material dto.SignatureMaterial) error
}

type IdempotencyResolver interface {
	Key(delivery *dto.InboundDelivery) string
	// Lookup returns nil, nil when no record exists for key.
	Lookup(ctx context.Context, key string) (*models.IngestionRecord, error)
	Remember(ctx context.Context, key, recordID string)
}

type AddressResolver interface {
	Resolve(ctx context.Context, recipients []string) (*dto.AddressResolution, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (*dto.RateLimitDecision, error)
}

type EntitlementService interface {
	Check(ctx context.Context, tenant *models.Tenant) (*dto.EntitlementDecision, error)
	RecordCapture(ctx context.Context, tenant *models.Tenant) error
}

// LinkExtractor returns the first URL found, or "" when there is none.
type LinkExtractor interface {
	FromHTML(html string) string
	FromText(text string) string
}

type CaptureProcessor interface {
	Process(ctx context.Context, delivery *dto.InboundDelivery) (*dto.CaptureResult, error)
}

type CaptureStatusService interface {
	GetStatus(ctx context.Context, tenantID string) (*dto.CaptureStatusResponse, error)
}

type StalePendingSweeper interface {
	SweepStalePending(ctx context.Context) (int, error)
}
