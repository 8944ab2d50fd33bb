package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

const (
	DiagnosticQuotaExceeded  = "Storage quota exceeded for organization"
	DiagnosticProposalKept   = "Document already has a proposal; attachment stored without replacing it"
	DiagnosticProposalExists = "Document already has a proposal; link extraction skipped"
	DiagnosticNoContent      = "No PDF attachment or link found in email"
	DiagnosticProposalRaced  = "Document received a proposal concurrently; link not applied"
	DiagnosticLinkTooLong    = "Link found but exceeds the maximum length; not applied"
	DiagnosticUndecodable    = "Attachment content could not be decoded"
)

const (
	attachmentIDPrefix    = "file"
	attachmentKeyPrefix   = "inbound"
	maxFilenameChars      = 500
	storageCleanupTimeout = 10 * time.Second
)

type verdict int

const (
	// verdictSkip moves on to the next candidate.
	verdictSkip verdict = iota
	// verdictAccept stops the loop with a stored attachment.
	verdictAccept
	// verdictReject stops the loop and closes the record with a rejection.
	verdictReject
)

type candidateResult struct {
	verdict    verdict
	status     enum.IngestionStatus
	attachment *models.Attachment
	note       string
}

type pipelineOutcome struct {
	verdict    verdict
	status     enum.IngestionStatus
	attachment *models.Attachment
	notes      []string
}

func skip(note string) candidateResult {
	return candidateResult{verdict: verdictSkip, note: note}
}

func reject(status enum.IngestionStatus, note string) candidateResult {
	return candidateResult{verdict: verdictReject, status: status, note: note}
}

// runAttachmentPipeline tries candidates in order. The first accepted one
// wins; a size or quota rejection ends the loop; anything else is skipped.
// If nothing is accepted the outcome is verdictSkip and the caller falls back
// to link extraction.
func (p *processor) runAttachmentPipeline(ctx context.Context, record *models.IngestionRecord, tenant *models.Tenant, document *models.Document, candidates []dto.InboundAttachment) pipelineOutcome {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CaptureProcessor.runAttachmentPipeline")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("candidates", len(candidates))

	outcome := pipelineOutcome{verdict: verdictSkip}
	for i := range candidates {
		result := p.processCandidate(ctx, record, tenant, document, &candidates[i])
		if result.note != "" {
			outcome.notes = append(outcome.notes, result.note)
		}
		switch result.verdict {
		case verdictAccept:
			outcome.verdict = verdictAccept
			outcome.attachment = result.attachment
			span.LogKV("accepted.index", i, "accepted.attachment", result.attachment.ID)
			return outcome
		case verdictReject:
			outcome.verdict = verdictReject
			outcome.status = result.status
			span.LogKV("rejected.index", i, "rejected.status", result.status.String())
			return outcome
		}
	}
	return outcome
}

func (p *processor) processCandidate(ctx context.Context, record *models.IngestionRecord, tenant *models.Tenant, document *models.Document, candidate *dto.InboundAttachment) candidateResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CaptureProcessor.processCandidate")
	defer span.Finish()
	span.LogKV("filename", candidate.Filename, "contentType", candidate.ContentType, "size", candidate.Size())

	// Stage 1: type screen
	if len(candidate.Data) == 0 {
		return skip("")
	}
	if !isPDF(candidate) {
		span.LogKV("result", "not a pdf")
		return skip("")
	}

	// Stage 2: size screen, before any reservation
	size := candidate.Size()
	if size > p.cfg.MaxAttachmentBytes {
		p.log.Infof("Attachment %s on record %s is %d bytes, above the %d limit",
			candidate.Filename, record.ID, size, p.cfg.MaxAttachmentBytes)
		return reject(enum.IngestionStatusRejectedSizeExceeded,
			fmt.Sprintf("Attachment %q is %d bytes, maximum is %d", utils.SafeFilename(candidate.Filename), size, p.cfg.MaxAttachmentBytes))
	}

	// Stage 3: quota reservation
	reservation, ok, err := reserveStorage(ctx, p.repositories.TenantRepository, tenant.ID, size)
	if err != nil {
		tracing.TraceErr(span, err)
		p.log.Errorf("Failed to reserve %d bytes for tenant %s: %v", size, tenant.ID, err)
		return skip(candidateNote(candidate, "storage reservation failed"))
	}
	if !ok {
		p.log.Infof("Tenant %s storage quota exceeded by %s (%d bytes)", tenant.ID, candidate.Filename, size)
		return reject(enum.IngestionStatusRejectedQuotaExceeded, DiagnosticQuotaExceeded)
	}

	// Stage 4: upload
	key := objectKey(tenant.ID, document.ID, record.ID, candidate.Filename)
	if err := p.storage.Upload(ctx, key, candidate.Data, utils.ContentTypePDF); err != nil {
		tracing.TraceErr(span, err)
		p.log.Warnf("Upload of %s for record %s failed: %v", key, record.ID, err)
		p.rollback(ctx, reservation)
		return skip(candidateNote(candidate, "upload failed"))
	}

	// Stage 5: persist
	now := utils.Now()
	attachment := &models.Attachment{
		ID:             utils.GenerateNanoIDWithPrefix(attachmentIDPrefix, 12),
		OrganizationID: tenant.ID,
		DocumentID:     document.ID,
		IngestionID:    record.ID,
		Filename:       utils.Truncate(candidate.Filename, maxFilenameChars),
		ContentType:    utils.ContentTypePDF,
		SizeBytes:      size,
		StorageService: p.storage.ServiceName(),
		StorageBucket:  p.storage.BucketName(),
		StoragePointer: p.storage.Pointer(key),
		ContentHash:    contentHash(candidate.Data),
		ExpiresAt:      tenant.RetentionExpiry(now),
		CreatedAt:      now,
	}
	if err := p.repositories.AttachmentRepository.Create(ctx, attachment); err != nil {
		tracing.TraceErr(span, err)
		p.log.Errorf("Failed to persist attachment for record %s: %v", record.ID, err)
		p.deleteObject(ctx, key)
		p.rollback(ctx, reservation)
		return skip(candidateNote(candidate, "attachment could not be saved"))
	}
	reservation.Commit()

	note := ""
	updated, err := p.repositories.DocumentRepository.SetProposalAttachment(ctx, document.ID, attachment.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		p.log.Errorf("Failed to set proposal attachment on document %s: %v", document.ID, err)
		note = candidateNote(candidate, "stored but not linked to document")
	} else if !updated {
		note = DiagnosticProposalKept
	}

	return candidateResult{verdict: verdictAccept, attachment: attachment, note: note}
}

func (p *processor) rollback(ctx context.Context, reservation *storageReservation) {
	if err := reservation.Rollback(ctx); err != nil {
		p.log.Errorf("Failed to roll back %d reserved bytes for tenant %s: %v", reservation.bytes, reservation.tenantID, err)
	}
}

func (p *processor) deleteObject(ctx context.Context, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storageCleanupTimeout)
	defer cancel()
	if err := p.storage.Delete(cleanupCtx, key); err != nil {
		p.log.Warnf("Failed to delete orphaned object %s: %v", key, err)
	}
}

// isPDF trusts a specific declared type. Generic or missing types are decided
// by content sniffing, with the extension as a last resort.
func isPDF(candidate *dto.InboundAttachment) bool {
	if utils.IsPDFContentType(candidate.ContentType) {
		return true
	}
	if !utils.IsGenericContentType(candidate.ContentType) {
		return false
	}
	if mimetype.Detect(candidate.Data).Is(utils.ContentTypePDF) {
		return true
	}
	return utils.HasPDFExtension(candidate.Filename)
}

// objectKey is inbound/{tenant}/{document}/{unixMilli}-{record}-{filename}.
func objectKey(tenantID, documentID, recordID, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%d-%s-%s", attachmentKeyPrefix, tenantID, documentID, utils.Now().UnixMilli(), recordID, utils.SafeFilename(filename))
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func candidateNote(candidate *dto.InboundAttachment, reason string) string {
	return fmt.Sprintf("attachment %q: %s", utils.SafeFilename(candidate.Filename), reason)
}
