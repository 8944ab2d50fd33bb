package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) interfaces.DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "documentRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var document models.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&document).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &document, nil
}

func (r *documentRepository) GetByPublicID(ctx context.Context, tenantID, publicID string) (*models.Document, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "documentRepository.GetByPublicID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("document.publicId", publicID)

	var document models.Document
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND public_id = ?", tenantID, publicID).
		First(&document).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &document, nil
}

func (r *documentRepository) SetProposalAttachment(ctx context.Context, documentID, attachmentID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "documentRepository.SetProposalAttachment")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, documentID)

	return r.setProposalField(ctx, span, documentID, "proposal_attachment_id", attachmentID)
}

func (r *documentRepository) SetProposalLink(ctx context.Context, documentID, link string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "documentRepository.SetProposalLink")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, documentID)

	return r.setProposalField(ctx, span, documentID, "proposal_link", link)
}

// first write wins: the guard is part of the UPDATE, not a prior read
func (r *documentRepository) setProposalField(ctx context.Context, span opentracing.Span, documentID, column, value string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND proposal_attachment_id IS NULL AND proposal_link IS NULL", documentID).
		UpdateColumns(map[string]interface{}{
			column:       value,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}
	written := result.RowsAffected == 1
	span.LogKV("written", written)
	return written, nil
}
