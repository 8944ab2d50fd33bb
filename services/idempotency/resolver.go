package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/tracing"
)

// DefaultTTL covers the retry horizon of both relays.
const DefaultTTL = 24 * time.Hour

const (
	// fallback keys carry this many hex chars of the digest
	fallbackHashLength = 32
	// message ids longer than this are hashed to keep the key within the column
	maxMessageIDLength = 250
)

type resolver struct {
	records interfaces.IngestionRecordRepository
	cache   RecordCache
	log     logger.Logger
}

// NewResolver builds the idempotency resolver. cache may be nil, in which case
// every lookup goes to the database.
func NewResolver(records interfaces.IngestionRecordRepository, cache RecordCache, log logger.Logger) interfaces.IdempotencyResolver {
	if cache == nil {
		cache = noopCache{}
	}
	return &resolver{records: records, cache: cache, log: log}
}

// Key is provider:messageId when the relay supplied a message id, otherwise
// provider:sha256(from || timestamp) truncated.
func (r *resolver) Key(delivery *dto.InboundDelivery) string {
	provider := delivery.Provider.String()

	messageID := normalizeMessageID(delivery.MessageID)
	if messageID != "" {
		if len(messageID) > maxMessageIDLength {
			return fmt.Sprintf("%s:%s", provider, digest(messageID))
		}
		return fmt.Sprintf("%s:%s", provider, messageID)
	}

	from := strings.ToLower(delivery.SenderAddress())
	timestamp := strings.TrimSpace(delivery.Timestamp)
	if timestamp == "" {
		// without a relay timestamp the content stands in, so retries still collapse
		timestamp = delivery.Subject + "\x00" + delivery.BodyChecksum()
	}
	return fmt.Sprintf("%s:%s", provider, digest(from+"\x00"+timestamp))
}

func (r *resolver) Lookup(ctx context.Context, key string) (*models.IngestionRecord, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IdempotencyResolver.Lookup")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("idempotency.key", key)

	if recordID, err := r.cache.Get(ctx, key); err != nil {
		r.log.Warnf("idempotency cache read failed for %s: %v", key, err)
	} else if recordID != "" {
		record, err := r.records.GetByID(ctx, recordID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if record != nil {
			span.LogKV("cache.hit", true)
			return record, nil
		}
	}

	record, err := r.records.GetByIdempotencyKey(ctx, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return record, nil
}

// Remember caches key -> recordID. Failures are logged; the unique index on
// the records table stays the source of truth.
func (r *resolver) Remember(ctx context.Context, key, recordID string) {
	if _, err := r.cache.SetNX(ctx, key, recordID, DefaultTTL); err != nil {
		r.log.Warnf("idempotency cache write failed for %s: %v", key, err)
	}
}

func normalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return strings.TrimSpace(messageID)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:fallbackHashLength]
}
