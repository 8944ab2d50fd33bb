package status

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	bccerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

type captureStatusService struct {
	records interfaces.IngestionRecordRepository
}

func NewCaptureStatusService(records interfaces.IngestionRecordRepository) interfaces.CaptureStatusService {
	return &captureStatusService{records: records}
}

// GetStatus reports the tenant's latest successful capture. Only the receipt
// time and a shortened subject leave this service, never body content.
func (s *captureStatusService) GetStatus(ctx context.Context, tenantID string) (*dto.CaptureStatusResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CaptureStatusService.GetStatus")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if tenantID == "" {
		return nil, errors.WithStack(bccerrors.ErrTenantMissing)
	}

	record, err := s.records.GetLatestProcessedForTenant(ctx, tenantID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if record == nil {
		return &dto.CaptureStatusResponse{HasCapture: false}, nil
	}

	capturedAt := record.ReceivedAt
	return &dto.CaptureStatusResponse{
		HasCapture:     true,
		LastCapturedAt: &capturedAt,
		LastSubject:    utils.TruncatePtr(record.RawSubject, utils.MaxStatusSubjectChars),
	}, nil
}
