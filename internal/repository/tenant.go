package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

type tenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) interfaces.TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "tenantRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, id)

	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) GetByShortID(ctx context.Context, shortID string) (*models.Tenant, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "tenantRepository.GetByShortID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("tenant.shortId", shortID)

	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("LOWER(short_id) = LOWER(?)", shortID).First(&tenant).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &tenant, nil
}

// ReserveStorage is a single conditional update, so concurrent reservations
// for one tenant serialize on the row lock and can never overrun the quota.
func (r *tenantRepository) ReserveStorage(ctx context.Context, tenantID string, bytes int64) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "tenantRepository.ReserveStorage")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("bytes", bytes)

	if bytes < 0 {
		return false, errors.Wrap(ErrInvalidInput, "negative reservation")
	}

	result := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ? AND storage_used_bytes + ? <= storage_quota_bytes", tenantID, bytes).
		UpdateColumns(map[string]interface{}{
			"storage_used_bytes": gorm.Expr("storage_used_bytes + ?", bytes),
			"updated_at":         utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}
	reserved := result.RowsAffected == 1
	span.LogKV("reserved", reserved)
	return reserved, nil
}

func (r *tenantRepository) ReleaseStorage(ctx context.Context, tenantID string, bytes int64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "tenantRepository.ReleaseStorage")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("bytes", bytes)

	result := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		UpdateColumns(map[string]interface{}{
			"storage_used_bytes": gorm.Expr("GREATEST(storage_used_bytes - ?, 0)", bytes),
			"updated_at":         utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		err := errors.Errorf("tenant %s not found while releasing storage", tenantID)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *tenantRepository) IncrementTrialCaptures(ctx context.Context, tenantID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "tenantRepository.IncrementTrialCaptures")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	err := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		UpdateColumns(map[string]interface{}{
			"trial_captures_used": gorm.Expr("trial_captures_used + 1"),
			"updated_at":          utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
