package capture

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/config"
	"github.com/customeros/bccstack/internal/enum"
	bccerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/repository/inmemory"
	"github.com/customeros/bccstack/internal/utils"
	"github.com/customeros/bccstack/services/address"
	"github.com/customeros/bccstack/services/entitlement"
	"github.com/customeros/bccstack/services/events"
	"github.com/customeros/bccstack/services/idempotency"
	"github.com/customeros/bccstack/services/link_extractor"
	"github.com/customeros/bccstack/services/ratelimit"
	"github.com/customeros/bccstack/services/storage"
)

const (
	testDomain  = "in.example.com"
	testAddress = "bcc+ORG1+DOC1@in.example.com"
	tenantID    = "tenant-1"
	documentID  = "doc-1"
	mb          = int64(1024 * 1024)
)

type harness struct {
	store     *inmemory.Store
	storage   *storage.MemoryStorageService
	publisher *events.RecordingPublisher
	cfg       *config.CaptureConfig
	processor interfaces.CaptureProcessor
}

func newHarness(t *testing.T, tenantLimit int) *harness {
	t.Helper()

	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()

	h := &harness{
		store:     inmemory.NewStore(),
		storage:   storage.NewMemoryStorageService("test-bucket"),
		publisher: events.NewRecordingPublisher(),
		cfg:       config.DefaultCaptureConfig(testDomain),
	}
	repos := h.store.Repositories()

	h.store.PutTenant(models.Tenant{
		ID:                    tenantID,
		ShortID:               "ORG1",
		PlanTier:              enum.PlanTierPaid,
		InboundCaptureEnabled: true,
		StorageQuotaBytes:     5 * 1024 * mb,
	})
	h.store.PutDocument(models.Document{ID: documentID, TenantID: tenantID, PublicID: "DOC1"})

	h.processor = NewProcessor(h.cfg, log, Dependencies{
		Repositories:  repos,
		Idempotency:   idempotency.NewResolver(repos.IngestionRecordRepository, nil, log),
		Addresses:     address.NewResolver(testDomain, repos.TenantRepository, repos.DocumentRepository),
		TenantLimiter: ratelimit.NewMemoryLimiter(tenantLimit, time.Minute),
		Entitlements:  entitlement.NewEntitlementService(repos.TenantRepository, h.cfg.TrialCaptureLimit),
		Storage:       h.storage,
		Links:         link_extractor.NewLinkExtractor(),
		Publisher:     h.publisher,
	})
	return h
}

func (h *harness) setTenant(mutate func(*models.Tenant)) {
	tenant := h.store.Tenant(tenantID)
	mutate(&tenant)
	h.store.PutTenant(tenant)
}

func pdf(size int64) []byte {
	header := []byte("%PDF-1.4\n")
	if size < int64(len(header)) {
		return header[:size]
	}
	return append(header, bytes.Repeat([]byte{'0'}, int(size)-len(header))...)
}

func pdfAttachment(name string, size int64) dto.InboundAttachment {
	return dto.InboundAttachment{Filename: name, ContentType: "application/pdf", DeclaredSize: size, Data: pdf(size)}
}

func delivery(messageID string, attachments ...dto.InboundAttachment) *dto.InboundDelivery {
	return &dto.InboundDelivery{
		Provider:    enum.ProviderRelayA,
		MessageID:   messageID,
		From:        "Jane Doe <jane@acme.com>",
		To:          []string{"client@customer.com", testAddress},
		Subject:     "Our proposal",
		TextBody:    "Please find the proposal attached.",
		Timestamp:   "1700000000",
		RemoteIP:    "10.0.0.1",
		Attachments: attachments,
	}
}

func TestProcess_PDFAttachmentIsStored(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()

	result, err := h.processor.Process(ctx, delivery("msg-abc", pdfAttachment("proposal.pdf", 2*mb)))
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeProcessed, result.Status)
	assert.Equal(t, documentID, result.DocumentID)
	require.NotNil(t, result.AttachmentAccepted)
	assert.True(t, *result.AttachmentAccepted)

	attachments := h.store.Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, 2*mb, attachments[0].SizeBytes)
	assert.Equal(t, "application/pdf", attachments[0].ContentType)
	assert.Equal(t, result.ID, attachments[0].IngestionID)
	assert.Contains(t, attachments[0].StoragePointer, "inbound/tenant-1/doc-1/")
	assert.Nil(t, attachments[0].ExpiresAt)

	doc := h.store.Document(documentID)
	require.NotNil(t, doc.ProposalAttachmentID)
	assert.Equal(t, attachments[0].ID, *doc.ProposalAttachmentID)

	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusProcessed, record.Status)
	assert.NotNil(t, record.ProcessedAt)
	require.NotNil(t, record.AttachmentID)
	assert.Equal(t, attachments[0].ID, *record.AttachmentID)
	assert.Equal(t, "relayA:msg-abc", record.IdempotencyKey)
	assert.Equal(t, []string{testAddress}, []string(record.MatchedRecipients))

	assert.Equal(t, 2*mb, h.store.Tenant(tenantID).StorageUsedBytes)
	assert.Equal(t, 1, h.storage.ObjectCount())

	published := h.publisher.Events()
	require.Len(t, published, 2)
	assert.True(t, published[0].Direct)
	assert.False(t, published[1].Direct)
	for _, e := range published {
		assert.Equal(t, dto.EventTypeInboundCaptureCompleted, e.EventType)
		assert.Equal(t, tenantID, e.Tenant)
		assert.Equal(t, result.ID, e.EntityId)
	}
	event, ok := published[0].Message.(dto.InboundCaptureCompleted)
	require.True(t, ok)
	assert.Equal(t, enum.IngestionStatusProcessed.String(), event.Status)
	assert.True(t, event.AttachmentAccepted)
	assert.False(t, event.Rejected)
}

func TestProcess_DuplicateDeliveryReturnsFirstRecord(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()

	first, err := h.processor.Process(ctx, delivery("msg-abc", pdfAttachment("proposal.pdf", mb)))
	require.NoError(t, err)

	second, err := h.processor.Process(ctx, delivery("<msg-abc>", pdfAttachment("proposal.pdf", mb)))
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeDuplicate, second.Status)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.store.RecordCount())
	assert.Len(t, h.store.Attachments(), 1)
	assert.Equal(t, mb, h.store.Tenant(tenantID).StorageUsedBytes)
}

func TestProcess_ConcurrentDuplicatesCollapse(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := h.processor.Process(ctx, delivery("msg-race", pdfAttachment("proposal.pdf", mb)))
			if assert.NoError(t, err) {
				ids[i] = result.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, h.store.RecordCount())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestProcess_NoMatchingAddress(t *testing.T) {
	h := newHarness(t, 100)
	d := delivery("msg-unmatched")
	d.To = []string{"random@otherdomain.com"}

	result, err := h.processor.Process(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeUnmatched, result.Status)
	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusUnmatched, record.Status)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, address.DiagnosticNoAddress, *record.ErrorMessage)
	assert.NotNil(t, record.ProcessedAt)
	assert.Nil(t, record.OrganizationID)

	published := h.publisher.Events()
	require.Len(t, published, 1)
	assert.True(t, published[0].Direct)
	assert.Empty(t, published[0].Tenant)
}

func TestProcess_UnknownDocumentIsUnmatched(t *testing.T) {
	h := newHarness(t, 100)
	d := delivery("msg-nodoc")
	d.To = []string{"bcc+ORG1+MISSING@in.example.com"}

	result, err := h.processor.Process(context.Background(), d)
	require.NoError(t, err)

	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusUnmatched, record.Status)
	require.NotNil(t, record.OrganizationID)
	assert.Equal(t, tenantID, *record.OrganizationID)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, address.DiagnosticDocumentNotFound, *record.ErrorMessage)
}

func TestProcess_FreeTierIsRejected(t *testing.T) {
	h := newHarness(t, 100)
	h.setTenant(func(tenant *models.Tenant) { tenant.PlanTier = enum.PlanTierFree })

	result, err := h.processor.Process(context.Background(), delivery("msg-free", pdfAttachment("proposal.pdf", mb)))
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeRejected, result.Status)
	assert.Equal(t, dto.RejectReasonCaptureUnavailable, result.Reason)
	assert.Equal(t, enum.IngestionStatusRejectedFeatureDisabled, h.store.Record(result.ID).Status)
	assert.Equal(t, 0, h.storage.ObjectCount())

	published := h.publisher.Events()
	require.Len(t, published, 2)
	for _, e := range published {
		event, ok := e.Message.(dto.InboundCaptureCompleted)
		require.True(t, ok)
		assert.True(t, event.Rejected)
		assert.Equal(t, tenantID, event.TenantID)
	}
}

func TestProcess_TrialLimit(t *testing.T) {
	h := newHarness(t, 100)
	h.setTenant(func(tenant *models.Tenant) {
		tenant.PlanTier = enum.PlanTierTrial
		tenant.TrialCapturesUsed = h.cfg.TrialCaptureLimit - 1
	})
	ctx := context.Background()

	result, err := h.processor.Process(ctx, delivery("msg-trial-1", pdfAttachment("proposal.pdf", mb)))
	require.NoError(t, err)
	assert.Equal(t, dto.CaptureOutcomeProcessed, result.Status)
	assert.Equal(t, h.cfg.TrialCaptureLimit, h.store.Tenant(tenantID).TrialCapturesUsed)

	result, err = h.processor.Process(ctx, delivery("msg-trial-2", pdfAttachment("proposal.pdf", mb)))
	require.NoError(t, err)
	assert.Equal(t, dto.CaptureOutcomeRejected, result.Status)
	assert.Equal(t, dto.RejectReasonCaptureUnavailable, result.Reason)
	assert.Equal(t, enum.IngestionStatusRejectedTrialLimit, h.store.Record(result.ID).Status)
}

func TestProcess_OversizeAttachmentShortCircuits(t *testing.T) {
	h := newHarness(t, 100)

	result, err := h.processor.Process(context.Background(), delivery("msg-big",
		pdfAttachment("huge.pdf", 15*mb),
		pdfAttachment("small.pdf", mb),
	))
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeRejected, result.Status)
	assert.Equal(t, dto.RejectReasonSizeExceeded, result.Reason)
	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusRejectedSizeExceeded, record.Status)
	assert.NotNil(t, record.ProcessedAt)
	assert.Equal(t, int64(0), h.store.Tenant(tenantID).StorageUsedBytes)
	assert.Equal(t, 0, h.storage.ObjectCount())
	assert.Empty(t, h.store.Attachments())
}

func TestProcess_QuotaExceeded(t *testing.T) {
	h := newHarness(t, 100)
	h.setTenant(func(tenant *models.Tenant) {
		tenant.StorageQuotaBytes = 3 * mb
		tenant.StorageUsedBytes = 2 * mb
	})

	result, err := h.processor.Process(context.Background(), delivery("msg-quota", pdfAttachment("proposal.pdf", 2*mb)))
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeRejected, result.Status)
	assert.Equal(t, dto.RejectReasonCaptureUnavailable, result.Reason)
	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusRejectedQuotaExceeded, record.Status)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, DiagnosticQuotaExceeded, *record.ErrorMessage)
	assert.Equal(t, 2*mb, h.store.Tenant(tenantID).StorageUsedBytes)
}

func TestProcess_QuotaConservedUnderConcurrency(t *testing.T) {
	h := newHarness(t, 1000)
	h.setTenant(func(tenant *models.Tenant) { tenant.StorageQuotaBytes = 10 * mb })
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.processor.Process(ctx, delivery(fmt.Sprintf("msg-%d", i), pdfAttachment("proposal.pdf", 3*mb)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var persisted int64
	for _, a := range h.store.Attachments() {
		persisted += a.SizeBytes
	}
	used := h.store.Tenant(tenantID).StorageUsedBytes
	assert.Equal(t, persisted, used)
	assert.LessOrEqual(t, used, 10*mb)
	assert.Len(t, h.store.Attachments(), 3)
	assert.Equal(t, workers, h.store.RecordCount())
}

func TestProcess_UploadFailureRollsBackReservation(t *testing.T) {
	h := newHarness(t, 100)
	h.setTenant(func(tenant *models.Tenant) { tenant.StorageUsedBytes = mb })
	h.storage.SetFailUploads(true)

	result, err := h.processor.Process(context.Background(), delivery("msg-fail", pdfAttachment("proposal.pdf", 2*mb)))
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeProcessed, result.Status)
	require.NotNil(t, result.AttachmentAccepted)
	assert.False(t, *result.AttachmentAccepted)
	assert.Equal(t, mb, h.store.Tenant(tenantID).StorageUsedBytes)

	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusProcessed, record.Status)
	assert.Nil(t, record.AttachmentID)
	require.NotNil(t, record.ErrorMessage)
	assert.Contains(t, *record.ErrorMessage, "upload failed")
	assert.Contains(t, *record.ErrorMessage, DiagnosticNoContent)
}

func TestProcess_UploadFailureFallsThroughToNextCandidate(t *testing.T) {
	h := newHarness(t, 100)
	failing := &failOnceStorage{MemoryStorageService: h.storage}
	h.processor.(*processor).storage = failing

	result, err := h.processor.Process(context.Background(), delivery("msg-retry",
		pdfAttachment("first.pdf", 2*mb),
		pdfAttachment("second.pdf", mb),
	))
	require.NoError(t, err)

	require.NotNil(t, result.AttachmentAccepted)
	assert.True(t, *result.AttachmentAccepted)
	attachments := h.store.Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "second.pdf", attachments[0].Filename)
	assert.Equal(t, mb, h.store.Tenant(tenantID).StorageUsedBytes)
}

func TestProcess_AttachmentPersistFailureCleansUp(t *testing.T) {
	h := newHarness(t, 100)
	h.store.AttachmentCreateErr = errors.New("insert failed")

	result, err := h.processor.Process(context.Background(), delivery("msg-persist", pdfAttachment("proposal.pdf", mb)))
	require.NoError(t, err)

	require.NotNil(t, result.AttachmentAccepted)
	assert.False(t, *result.AttachmentAccepted)
	assert.Equal(t, int64(0), h.store.Tenant(tenantID).StorageUsedBytes)
	assert.Equal(t, 0, h.storage.ObjectCount())
}

func TestProcess_NonPDFSkipped(t *testing.T) {
	h := newHarness(t, 100)

	image := dto.InboundAttachment{Filename: "logo.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	sniffed := dto.InboundAttachment{Filename: "scan", ContentType: "application/octet-stream", Data: pdf(mb)}

	result, err := h.processor.Process(context.Background(), delivery("msg-mixed", image, sniffed))
	require.NoError(t, err)

	require.NotNil(t, result.AttachmentAccepted)
	assert.True(t, *result.AttachmentAccepted)
	attachments := h.store.Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "scan", attachments[0].Filename)
}

func TestProcess_UndecodableAttachmentIsNoted(t *testing.T) {
	h := newHarness(t, 100)
	d := delivery("msg-undecodable", pdfAttachment("proposal.pdf", mb))
	d.UndecodableAttachments = []string{"broken.pdf"}

	result, err := h.processor.Process(context.Background(), d)
	require.NoError(t, err)

	require.NotNil(t, result.AttachmentAccepted)
	assert.True(t, *result.AttachmentAccepted)
	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusProcessed, record.Status)
	assert.Equal(t, []string{"proposal.pdf", "broken.pdf"}, []string(record.CandidateFilenames))
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, DiagnosticUndecodable+": broken.pdf", *record.ErrorMessage)
}

func TestProcess_LinkFallback(t *testing.T) {
	h := newHarness(t, 100)
	d := delivery("msg-link")
	d.HTMLBody = `<p>Proposal is <a href="https://docs.example.com/proposal/42">here</a></p>`

	result, err := h.processor.Process(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeProcessed, result.Status)
	require.NotNil(t, result.AttachmentAccepted)
	assert.False(t, *result.AttachmentAccepted)

	doc := h.store.Document(documentID)
	require.NotNil(t, doc.ProposalLink)
	assert.Equal(t, "https://docs.example.com/proposal/42", *doc.ProposalLink)

	record := h.store.Record(result.ID)
	require.NotNil(t, record.ParsedLink)
	assert.Equal(t, "https://docs.example.com/proposal/42", *record.ParsedLink)
	assert.Nil(t, record.ErrorMessage)
}

func TestProcess_LinkFallbackRejectsOverlongLink(t *testing.T) {
	h := newHarness(t, 100)
	long := "https://docs.example.com/p/" + strings.Repeat("a", maxParsedLinkChars)
	d := delivery("msg-long-link")
	d.HTMLBody = `<a href="` + long + `">proposal</a>`

	result, err := h.processor.Process(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeProcessed, result.Status)
	doc := h.store.Document(documentID)
	assert.Nil(t, doc.ProposalLink)

	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusProcessed, record.Status)
	assert.Nil(t, record.ParsedLink)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, DiagnosticLinkTooLong, *record.ErrorMessage)
}

func TestProcess_ExistingProposalIsNotOverwritten(t *testing.T) {
	h := newHarness(t, 100)
	h.store.PutDocument(models.Document{
		ID:                   documentID,
		TenantID:             tenantID,
		PublicID:             "DOC1",
		ProposalAttachmentID: utils.StringPtr("file_existing"),
	})
	d := delivery("msg-noop")
	d.HTMLBody = `<a href="https://docs.example.com/other">other</a>`

	result, err := h.processor.Process(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, dto.CaptureOutcomeProcessed, result.Status)
	doc := h.store.Document(documentID)
	assert.Nil(t, doc.ProposalLink)
	assert.Equal(t, "file_existing", *doc.ProposalAttachmentID)

	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusProcessed, record.Status)
	assert.Nil(t, record.ParsedLink)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, DiagnosticProposalExists, *record.ErrorMessage)
}

func TestProcess_NoContent(t *testing.T) {
	h := newHarness(t, 100)

	result, err := h.processor.Process(context.Background(), delivery("msg-empty"))
	require.NoError(t, err)

	record := h.store.Record(result.ID)
	assert.Equal(t, enum.IngestionStatusProcessed, record.Status)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, DiagnosticNoContent, *record.ErrorMessage)
	assert.Equal(t, 0, h.store.Tenant(tenantID).TrialCapturesUsed)
}

func TestProcess_TenantRateLimitCreatesNoRecord(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	_, err := h.processor.Process(ctx, delivery("msg-rl-1"))
	require.NoError(t, err)

	_, err = h.processor.Process(ctx, delivery("msg-rl-2"))
	require.Error(t, err)
	assert.Equal(t, bccerrors.KindRateLimit, bccerrors.KindOf(err))
	assert.Greater(t, bccerrors.RetryAfterOf(err), time.Duration(0))
	assert.Equal(t, 1, h.store.RecordCount())
}

func TestProcess_InvalidDelivery(t *testing.T) {
	h := newHarness(t, 100)
	d := delivery("msg-invalid")
	d.From = ""

	_, err := h.processor.Process(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, bccerrors.KindValidation, bccerrors.KindOf(err))
	assert.Equal(t, 0, h.store.RecordCount())
}

func TestProcess_RawFieldsAreBounded(t *testing.T) {
	h := newHarness(t, 100)
	d := delivery("msg-long")
	d.TextBody = string(bytes.Repeat([]byte("a"), utils.MaxBodyTextChars+500))
	d.HTMLBody = "<p>" + string(bytes.Repeat([]byte("b"), utils.MaxBodyHTMLChars)) + "</p>"

	result, err := h.processor.Process(context.Background(), d)
	require.NoError(t, err)

	record := h.store.Record(result.ID)
	assert.Len(t, record.RawBodyText, utils.MaxBodyTextChars)
	assert.Len(t, record.RawBodyHTML, utils.MaxBodyHTMLChars)
	assert.Equal(t, d.BodyChecksum(), record.BodyChecksum)
}

func TestReservation_RollbackIsIdempotent(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()
	tenants := h.store.Repositories().TenantRepository

	reservation, ok, err := reserveStorage(ctx, tenants, tenantID, 4*mb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4*mb, h.store.Tenant(tenantID).StorageUsedBytes)

	require.NoError(t, reservation.Rollback(ctx))
	require.NoError(t, reservation.Rollback(ctx))
	assert.Equal(t, int64(0), h.store.Tenant(tenantID).StorageUsedBytes)
}

func TestReservation_CommitKeepsDebit(t *testing.T) {
	h := newHarness(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	tenants := h.store.Repositories().TenantRepository

	reservation, ok, err := reserveStorage(ctx, tenants, tenantID, mb)
	require.NoError(t, err)
	require.True(t, ok)

	reservation.Commit()
	cancel()
	require.NoError(t, reservation.Rollback(ctx))
	assert.Equal(t, mb, h.store.Tenant(tenantID).StorageUsedBytes)
}

// failOnceStorage fails the first upload and delegates the rest.
type failOnceStorage struct {
	*storage.MemoryStorageService
	mu     sync.Mutex
	failed bool
}

func (s *failOnceStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	if !s.failed {
		s.failed = true
		s.mu.Unlock()
		return bccerrors.ErrStorageUploadFailed
	}
	s.mu.Unlock()
	return s.MemoryStorageService.Upload(ctx, key, data, contentType)
}
