package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

const staleSweepBatchSize = 100

type stalePendingSweeper struct {
	records    interfaces.IngestionRecordRepository
	staleAfter time.Duration
	log        logger.Logger
}

// NewStalePendingSweeper flags records stuck in pending, which happens when a
// request died between opening and closing its record. The status is left
// alone; operators decide what the delivery should have become.
func NewStalePendingSweeper(records interfaces.IngestionRecordRepository, staleAfter time.Duration, log logger.Logger) interfaces.StalePendingSweeper {
	return &stalePendingSweeper{records: records, staleAfter: staleAfter, log: log}
}

func (s *stalePendingSweeper) SweepStalePending(ctx context.Context) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StalePendingSweeper.SweepStalePending")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	cutoff := utils.Now().Add(-s.staleAfter)
	records, err := s.records.ListStalePending(ctx, cutoff, staleSweepBatchSize)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	annotated := 0
	for _, record := range records {
		message := fmt.Sprintf("Record still pending %s after receipt; processing did not finish", utils.Now().Sub(record.ReceivedAt).Round(time.Second))
		if err := s.records.AnnotateError(ctx, record.ID, message); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("Failed to annotate stale record %s: %v", record.ID, err)
			continue
		}
		s.log.Warnf("Stale pending ingestion record %s (provider %s, organization %s, received %s)",
			record.ID, record.Provider, utils.GetOrDefault(record.OrganizationID, ""), record.ReceivedAt.Format(time.RFC3339))
		annotated++
	}
	span.LogKV("annotated", annotated)
	return annotated, nil
}
