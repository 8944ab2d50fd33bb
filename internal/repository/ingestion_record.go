package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/customeros/bccstack/interfaces"
	internalerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

type ingestionRecordRepository struct {
	db *gorm.DB
}

func NewIngestionRecordRepository(db *gorm.DB) interfaces.IngestionRecordRepository {
	return &ingestionRecordRepository{db: db}
}

func (r *ingestionRecordRepository) Create(ctx context.Context, record *models.IngestionRecord) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRecordRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if record == nil || record.IdempotencyKey == "" || !record.Status.IsValid() {
		tracing.TraceErr(span, ErrInvalidInput)
		return ErrInvalidInput
	}
	if record.Status.IsTerminal() && record.ProcessedAt == nil {
		record.ProcessedAt = utils.NowPtr()
	}

	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if isDuplicateKey(err) {
			return duplicateDelivery(record.IdempotencyKey)
		}
		tracing.TraceErr(span, err)
		return err
	}
	span.LogKV("record.id", record.ID, "record.status", record.Status.String())
	return nil
}

func (r *ingestionRecordRepository) GetByID(ctx context.Context, id string) (*models.IngestionRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRecordRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var record models.IngestionRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &record, nil
}

func (r *ingestionRecordRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.IngestionRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRecordRepository.GetByIdempotencyKey")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("idempotency.key", key)

	var record models.IngestionRecord
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&record).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &record, nil
}

func (r *ingestionRecordRepository) Close(ctx context.Context, id string, update models.IngestionRecordClose) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRecordRepository.Close")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	if !update.Status.IsTerminal() {
		err := errors.Wrapf(ErrInvalidInput, "status %s is not terminal", update.Status)
		tracing.TraceErr(span, err)
		return err
	}

	now := utils.Now()
	updates := map[string]interface{}{
		"status":       update.Status.String(),
		"processed_at": now,
		"updated_at":   now,
	}
	if update.OrganizationID != nil {
		updates["organization_id"] = *update.OrganizationID
	}
	if update.DocumentID != nil {
		updates["document_id"] = *update.DocumentID
	}
	if update.AttachmentID != nil {
		updates["attachment_id"] = *update.AttachmentID
	}
	if update.ParsedLink != nil {
		updates["parsed_link"] = *update.ParsedLink
	}
	if update.ErrorMessage != nil {
		updates["error_message"] = utils.Truncate(*update.ErrorMessage, utils.MaxErrorMessageChars)
	}

	result := r.db.WithContext(ctx).
		Model(&models.IngestionRecord{}).
		Where("id = ? AND status = ?", id, enum.IngestionStatusPending.String()).
		Updates(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		err := errors.Wrapf(internalerrors.ErrRecordNotPending, "record %s", id)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *ingestionRecordRepository) GetLatestProcessedForTenant(ctx context.Context, tenantID string) (*models.IngestionRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRecordRepository.GetLatestProcessedForTenant")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	var record models.IngestionRecord
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", tenantID, enum.IngestionStatusProcessed.String()).
		Where("attachment_id IS NOT NULL OR parsed_link IS NOT NULL").
		Order("received_at DESC").
		First(&record).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &record, nil
}

func (r *ingestionRecordRepository) ListStalePending(ctx context.Context, receivedBefore time.Time, limit int) ([]*models.IngestionRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRecordRepository.ListStalePending")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var records []*models.IngestionRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND received_at < ?", enum.IngestionStatusPending.String(), receivedBefore).
		Where("error_message IS NULL").
		Order("received_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("records.count", len(records))
	return records, nil
}

// AnnotateError sets the diagnostic of a record that is still pending. A record
// closed in the meantime keeps the diagnostic its close wrote.
func (r *ingestionRecordRepository) AnnotateError(ctx context.Context, id, message string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingestionRecordRepository.AnnotateError")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	err := r.db.WithContext(ctx).
		Model(&models.IngestionRecord{}).
		Where("id = ? AND status = ?", id, enum.IngestionStatusPending.String()).
		UpdateColumns(map[string]interface{}{
			"error_message": utils.Truncate(message, utils.MaxErrorMessageChars),
			"updated_at":    utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
