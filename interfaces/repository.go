package interfaces

import (
	"context"
	"time"

	"github.com/customeros/bccstack/internal/models"
)

type IngestionRecordRepository interface {
	// Create returns errors.ErrDuplicateDelivery when the idempotency key is taken.
	Create(ctx context.Context, record *models.IngestionRecord) error
	GetByID(ctx context.Context, id string) (*models.IngestionRecord, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.IngestionRecord, error)
	// Close moves a pending record to a terminal status. It returns
	// errors.ErrRecordNotPending if the record already left pending.
	Close(ctx context.Context, id string, update models.IngestionRecordClose) error
	GetLatestProcessedForTenant(ctx context.Context, tenantID string) (*models.IngestionRecord, error)
	ListStalePending(ctx context.Context, receivedBefore time.Time, limit int) ([]*models.IngestionRecord, error)
	AnnotateError(ctx context.Context, id, message string) error
}

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
}

type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	GetByShortID(ctx context.Context, shortID string) (*models.Tenant, error)
	// ReserveStorage adds bytes to the used counter only if the result stays
	// within quota. It reports false when the quota would be exceeded.
	ReserveStorage(ctx context.Context, tenantID string, bytes int64) (bool, error)
	ReleaseStorage(ctx context.Context, tenantID string, bytes int64) error
	IncrementTrialCaptures(ctx context.Context, tenantID string) error
}

type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByPublicID(ctx context.Context, tenantID, publicID string) (*models.Document, error)
	// SetProposalAttachment and SetProposalLink only write when the document
	// has neither field set. They report whether the write happened.
	SetProposalAttachment(ctx context.Context, documentID, attachmentID string) (bool, error)
	SetProposalLink(ctx context.Context, documentID, link string) (bool, error)
}
