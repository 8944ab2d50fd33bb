package capture

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/config"
	"github.com/customeros/bccstack/internal/enum"
	bccerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/repository"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

// Dependencies are the collaborators a Processor orchestrates.
type Dependencies struct {
	Repositories  *repository.Repositories
	Idempotency   interfaces.IdempotencyResolver
	Addresses     interfaces.AddressResolver
	TenantLimiter interfaces.RateLimiter
	Entitlements  interfaces.EntitlementService
	Storage       interfaces.StorageService
	Links         interfaces.LinkExtractor
	Publisher     interfaces.EventPublisher
}

type processor struct {
	cfg           *config.CaptureConfig
	log           logger.Logger
	repositories  *repository.Repositories
	idempotency   interfaces.IdempotencyResolver
	addresses     interfaces.AddressResolver
	tenantLimiter interfaces.RateLimiter
	entitlements  interfaces.EntitlementService
	storage       interfaces.StorageService
	links         interfaces.LinkExtractor
	publisher     interfaces.EventPublisher
}

func NewProcessor(cfg *config.CaptureConfig, log logger.Logger, deps Dependencies) interfaces.CaptureProcessor {
	return &processor{
		cfg:           cfg,
		log:           log,
		repositories:  deps.Repositories,
		idempotency:   deps.Idempotency,
		addresses:     deps.Addresses,
		tenantLimiter: deps.TenantLimiter,
		entitlements:  deps.Entitlements,
		storage:       deps.Storage,
		links:         deps.Links,
		publisher:     deps.Publisher,
	}
}

// Process takes a verified delivery to a terminal record. Routing misses and
// business rejections come back as results; only validation, rate limit and
// infrastructure failures are returned as errors, and none of those leave a
// new record behind except when the store fails mid-pipeline.
func (p *processor) Process(ctx context.Context, delivery *dto.InboundDelivery) (*dto.CaptureResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CaptureProcessor.Process")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if delivery == nil {
		return nil, bccerrors.Validation(errors.New("delivery is nil"))
	}
	span.SetTag(tracing.SpanTagProvider, delivery.Provider.String())

	if err := delivery.Validate(); err != nil {
		return nil, bccerrors.Validation(err)
	}

	// Step 1: duplicates short-circuit everything
	key := p.idempotency.Key(delivery)
	span.LogKV("idempotencyKey", key)
	existing, err := p.idempotency.Lookup(ctx, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, bccerrors.Transient(err)
	}
	if existing != nil {
		p.log.Infof("Duplicate delivery %s, existing record %s", key, existing.ID)
		return dto.DuplicateResult(existing.ID, existing.Status), nil
	}

	// Step 2: resolve the blind copy address
	resolution, err := p.addresses.Resolve(ctx, delivery.Recipients())
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, bccerrors.Transient(err)
	}

	record := newRecord(key, delivery)
	if resolution.Match != nil {
		record.MatchedRecipients = []string{utils.Truncate(resolution.Match.Address, utils.MaxRawHeaderChars)}
	}

	if !resolution.Matched {
		p.log.Infof("Unmatched delivery from %s: %s", utils.MaskEmail(delivery.SenderAddress()), resolution.Diagnostic)
		record.Status = enum.IngestionStatusUnmatched
		record.ErrorMessage = utils.StringPtr(resolution.Diagnostic)
		if resolution.Tenant != nil {
			record.OrganizationID = &resolution.Tenant.ID
		}
		return p.createTerminal(ctx, record, dto.UnmatchedResult)
	}

	tenant, document := resolution.Tenant, resolution.Document
	ctx = utils.SetTenantInContext(ctx, tenant.ID)
	tracing.TagTenant(span, tenant.ID)
	record.OrganizationID = &tenant.ID
	record.DocumentID = &document.ID

	// Step 3: tenant throttle, before anything is persisted so the relay retry is not a duplicate
	if err := p.checkTenantRate(ctx, tenant.ID); err != nil {
		return nil, err
	}

	// Step 4: entitlement
	decision, err := p.entitlements.Check(ctx, tenant)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, bccerrors.Transient(err)
	}
	if !decision.Allowed {
		p.log.Infof("Capture for tenant %s rejected: %s", tenant.ID, decision.Reason)
		record.Status = decision.Status
		record.ErrorMessage = utils.StringPtr(decision.Reason)
		return p.createTerminal(ctx, record, func(id string) *dto.CaptureResult {
			return dto.RejectedResult(id, decision.Status)
		})
	}

	// Step 5: open the record
	record.Status = enum.IngestionStatusPending
	winner, err := p.createRecord(ctx, record)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, bccerrors.Transient(err)
	}
	if winner != nil {
		return dto.DuplicateResult(winner.ID, winner.Status), nil
	}
	p.idempotency.Remember(ctx, key, record.ID)
	tracing.TagEntity(span, record.ID)

	// Step 6: attachments, then link fallback
	outcome := p.runAttachmentPipeline(ctx, record, tenant, document, delivery.Attachments)
	if len(delivery.UndecodableAttachments) > 0 {
		note := DiagnosticUndecodable + ": " + strings.Join(delivery.UndecodableAttachments, ", ")
		outcome.notes = append([]string{note}, outcome.notes...)
	}
	if outcome.verdict == verdictReject {
		return p.closeRejected(ctx, record, outcome)
	}

	closeUpdate := models.IngestionRecordClose{Status: enum.IngestionStatusProcessed}
	notes := outcome.notes
	attachmentAccepted := outcome.verdict == verdictAccept
	if attachmentAccepted {
		closeUpdate.AttachmentID = &outcome.attachment.ID
	} else {
		link, linkNotes := p.applyLinkFallback(ctx, document, delivery)
		notes = append(notes, linkNotes...)
		if link != "" {
			closeUpdate.ParsedLink = &link
		}
	}
	if len(notes) > 0 {
		closeUpdate.ErrorMessage = utils.StringPtr(strings.Join(notes, "; "))
	}

	if err := p.repositories.IngestionRecordRepository.Close(ctx, record.ID, closeUpdate); err != nil {
		tracing.TraceErr(span, err)
		p.log.Errorf("Failed to close ingestion record %s: %v", record.ID, err)
		return nil, bccerrors.Transient(err)
	}

	if attachmentAccepted || closeUpdate.ParsedLink != nil {
		if err := p.entitlements.RecordCapture(ctx, tenant); err != nil {
			tracing.TraceErr(span, err)
			p.log.Errorf("Failed to record capture for tenant %s: %v", tenant.ID, err)
		}
	}

	p.log.Infof("Ingestion record %s processed for document %s (attachment: %t, link: %t)",
		record.ID, document.ID, attachmentAccepted, closeUpdate.ParsedLink != nil)
	p.publishCompleted(ctx, record, enum.IngestionStatusProcessed, attachmentAccepted, closeUpdate.ParsedLink != nil)

	return dto.ProcessedResult(record.ID, document.ID, attachmentAccepted), nil
}

func (p *processor) checkTenantRate(ctx context.Context, tenantID string) error {
	decision, err := p.tenantLimiter.Allow(ctx, "tenant:"+tenantID)
	if err != nil {
		// limiter backend down; capture keeps flowing
		p.log.Warnf("Tenant rate limiter unavailable for %s: %v", tenantID, err)
		return nil
	}
	if !decision.Allowed {
		p.log.Warnf("Tenant %s exceeded inbound rate limit, retry after %s", tenantID, decision.RetryAfter)
		return bccerrors.RateLimited(decision.RetryAfter)
	}
	return nil
}

// createRecord inserts record. When another delivery won the idempotency key
// in the meantime it returns that winner instead.
func (p *processor) createRecord(ctx context.Context, record *models.IngestionRecord) (*models.IngestionRecord, error) {
	err := p.repositories.IngestionRecordRepository.Create(ctx, record)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, bccerrors.ErrDuplicateDelivery) {
		return nil, err
	}
	winner, lookupErr := p.repositories.IngestionRecordRepository.GetByIdempotencyKey(ctx, record.IdempotencyKey)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if winner == nil {
		return nil, err
	}
	p.log.Infof("Lost idempotency race for %s to record %s", record.IdempotencyKey, winner.ID)
	return winner, nil
}

func (p *processor) createTerminal(ctx context.Context, record *models.IngestionRecord, result func(id string) *dto.CaptureResult) (*dto.CaptureResult, error) {
	winner, err := p.createRecord(ctx, record)
	if err != nil {
		return nil, bccerrors.Transient(err)
	}
	if winner != nil {
		return dto.DuplicateResult(winner.ID, winner.Status), nil
	}
	p.idempotency.Remember(ctx, record.IdempotencyKey, record.ID)
	p.publishCompleted(ctx, record, record.Status, false, false)
	return result(record.ID), nil
}

func (p *processor) closeRejected(ctx context.Context, record *models.IngestionRecord, outcome pipelineOutcome) (*dto.CaptureResult, error) {
	update := models.IngestionRecordClose{
		Status:       outcome.status,
		ErrorMessage: utils.StringPtr(strings.Join(outcome.notes, "; ")),
	}
	if err := p.repositories.IngestionRecordRepository.Close(ctx, record.ID, update); err != nil {
		p.log.Errorf("Failed to close ingestion record %s as %s: %v", record.ID, outcome.status, err)
		return nil, bccerrors.Transient(err)
	}
	p.log.Infof("Ingestion record %s closed as %s", record.ID, outcome.status)
	p.publishCompleted(ctx, record, outcome.status, false, false)
	return dto.RejectedResult(record.ID, outcome.status), nil
}

func (p *processor) publishCompleted(ctx context.Context, record *models.IngestionRecord, status enum.IngestionStatus, attachmentAccepted, parsedLink bool) {
	if p.publisher == nil {
		return
	}
	tenantID := utils.GetOrDefault(record.OrganizationID, "")
	event := dto.InboundCaptureCompleted{
		RecordID:           record.ID,
		Provider:           record.Provider.String(),
		TenantID:           tenantID,
		DocumentID:         utils.GetOrDefault(record.DocumentID, ""),
		Status:             status.String(),
		AttachmentAccepted: attachmentAccepted,
		ParsedLink:         parsedLink,
		Rejected:           status.IsRejected(),
	}
	err := p.publisher.PublishDirectEvent(ctx, tenantID, record.ID, enum.INGESTION_RECORD, dto.EventTypeInboundCaptureCompleted, event)
	if err != nil {
		p.log.Warnf("Failed to publish capture completed event for %s: %v", record.ID, err)
	}

	// tenant-wide consumers only see captures matched to an organization
	if tenantID == "" {
		return
	}
	err = p.publisher.PublishFanoutEvent(ctx, tenantID, record.ID, enum.INGESTION_RECORD, dto.EventTypeInboundCaptureCompleted, event)
	if err != nil {
		p.log.Warnf("Failed to publish capture completed fanout event for %s: %v", record.ID, err)
	}
}

func newRecord(key string, d *dto.InboundDelivery) *models.IngestionRecord {
	receivedAt := d.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = utils.Now()
	}
	return &models.IngestionRecord{
		Provider:           d.Provider,
		IdempotencyKey:     key,
		MessageID:          utils.Truncate(d.MessageID, utils.MaxRawHeaderChars),
		BodyChecksum:       d.BodyChecksum(),
		RawFrom:            utils.Truncate(d.From, utils.MaxRawHeaderChars),
		RawTo:              utils.Truncate(strings.Join(d.Recipients(), ", "), utils.MaxRawHeaderChars),
		RawSubject:         utils.Truncate(d.Subject, utils.MaxRawHeaderChars),
		RawBodyText:        utils.Truncate(d.TextBody, utils.MaxBodyTextChars),
		RawBodyHTML:        utils.Truncate(d.HTMLBody, utils.MaxBodyHTMLChars),
		CandidateFilenames: d.CandidateFilenames(),
		RemoteIP:           d.RemoteIP,
		ReceivedAt:         receivedAt,
	}
}
