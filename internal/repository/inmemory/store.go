// Package inmemory holds map backed repositories with the same guarantees as
// the postgres ones: unique idempotency keys, conditional quota updates and
// first-write-wins proposal fields.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/customeros/bccstack/interfaces"
	internalerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/repository"
	"github.com/customeros/bccstack/internal/utils"
)

type Store struct {
	mu          sync.Mutex
	records     map[string]*models.IngestionRecord
	recordKeys  map[string]string
	attachments map[string]*models.Attachment
	tenants     map[string]*models.Tenant
	documents   map[string]*models.Document

	// AttachmentCreateErr, when set, fails every attachment insert.
	AttachmentCreateErr error
}

func NewStore() *Store {
	return &Store{
		records:     make(map[string]*models.IngestionRecord),
		recordKeys:  make(map[string]string),
		attachments: make(map[string]*models.Attachment),
		tenants:     make(map[string]*models.Tenant),
		documents:   make(map[string]*models.Document),
	}
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		IngestionRecordRepository: &recordRepository{s},
		AttachmentRepository:      &attachmentRepository{s},
		TenantRepository:          &tenantRepository{s},
		DocumentRepository:        &documentRepository{s},
	}
}

func (s *Store) PutTenant(tenant models.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tenant.ID] = &tenant
}

func (s *Store) PutDocument(document models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[document.ID] = &document
}

func (s *Store) Tenant(id string) models.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		return *t
	}
	return models.Tenant{}
}

func (s *Store) Document(id string) models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.documents[id]; ok {
		return *d
	}
	return models.Document{}
}

func (s *Store) Record(id string) models.IngestionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return *r
	}
	return models.IngestionRecord{}
}

func (s *Store) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) Attachments() []models.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Attachment, 0, len(s.attachments))
	for _, a := range s.attachments {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type recordRepository struct{ s *Store }

var _ interfaces.IngestionRecordRepository = (*recordRepository)(nil)

func (r *recordRepository) Create(_ context.Context, record *models.IngestionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if record == nil || record.IdempotencyKey == "" || !record.Status.IsValid() {
		return repository.ErrInvalidInput
	}
	if _, taken := r.s.recordKeys[record.IdempotencyKey]; taken {
		return errors.Wrapf(internalerrors.ErrDuplicateDelivery, "idempotency key %s", record.IdempotencyKey)
	}
	if record.ID == "" {
		record.ID = utils.GenerateNanoIDWithPrefix("ingest", 16)
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = utils.Now()
	}
	if record.Status.IsTerminal() && record.ProcessedAt == nil {
		record.ProcessedAt = utils.NowPtr()
	}
	stored := *record
	r.s.records[record.ID] = &stored
	r.s.recordKeys[record.IdempotencyKey] = record.ID
	return nil
}

func (r *recordRepository) GetByID(_ context.Context, id string) (*models.IngestionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if record, ok := r.s.records[id]; ok {
		out := *record
		return &out, nil
	}
	return nil, nil
}

func (r *recordRepository) GetByIdempotencyKey(_ context.Context, key string) (*models.IngestionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.s.recordKeys[key]; ok {
		out := *r.s.records[id]
		return &out, nil
	}
	return nil, nil
}

func (r *recordRepository) Close(_ context.Context, id string, update models.IngestionRecordClose) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !update.Status.IsTerminal() {
		return errors.Wrapf(repository.ErrInvalidInput, "status %s is not terminal", update.Status)
	}
	record, ok := r.s.records[id]
	if !ok || record.Status != enum.IngestionStatusPending {
		return errors.Wrapf(internalerrors.ErrRecordNotPending, "record %s", id)
	}
	record.Status = update.Status
	record.ProcessedAt = utils.NowPtr()
	if update.OrganizationID != nil {
		record.OrganizationID = update.OrganizationID
	}
	if update.DocumentID != nil {
		record.DocumentID = update.DocumentID
	}
	if update.AttachmentID != nil {
		record.AttachmentID = update.AttachmentID
	}
	if update.ParsedLink != nil {
		record.ParsedLink = update.ParsedLink
	}
	if update.ErrorMessage != nil {
		record.ErrorMessage = utils.TruncatePtr(*update.ErrorMessage, utils.MaxErrorMessageChars)
	}
	return nil
}

func (r *recordRepository) GetLatestProcessedForTenant(_ context.Context, tenantID string) (*models.IngestionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var latest *models.IngestionRecord
	for _, record := range r.s.records {
		if record.OrganizationID == nil || *record.OrganizationID != tenantID {
			continue
		}
		if record.Status != enum.IngestionStatusProcessed || (record.AttachmentID == nil && record.ParsedLink == nil) {
			continue
		}
		if latest == nil || record.ReceivedAt.After(latest.ReceivedAt) {
			latest = record
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (r *recordRepository) ListStalePending(_ context.Context, receivedBefore time.Time, limit int) ([]*models.IngestionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.IngestionRecord
	for _, record := range r.s.records {
		if record.Status == enum.IngestionStatusPending && record.ErrorMessage == nil && record.ReceivedAt.Before(receivedBefore) {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *recordRepository) AnnotateError(_ context.Context, id, message string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if record, ok := r.s.records[id]; ok && record.Status == enum.IngestionStatusPending {
		record.ErrorMessage = utils.TruncatePtr(message, utils.MaxErrorMessageChars)
	}
	return nil
}

type attachmentRepository struct{ s *Store }

func (r *attachmentRepository) Create(_ context.Context, attachment *models.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.AttachmentCreateErr != nil {
		return r.s.AttachmentCreateErr
	}
	if attachment.ID == "" {
		attachment.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	attachment.CreatedAt = utils.Now()
	stored := *attachment
	r.s.attachments[attachment.ID] = &stored
	return nil
}

func (r *attachmentRepository) GetByID(_ context.Context, id string) (*models.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.attachments[id]; ok {
		out := *a
		return &out, nil
	}
	return nil, nil
}

type tenantRepository struct{ s *Store }

func (r *tenantRepository) GetByID(_ context.Context, id string) (*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tenants[id]; ok {
		out := *t
		return &out, nil
	}
	return nil, nil
}

func (r *tenantRepository) GetByShortID(_ context.Context, shortID string) (*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tenants {
		if strings.EqualFold(t.ShortID, shortID) {
			out := *t
			return &out, nil
		}
	}
	return nil, nil
}

func (r *tenantRepository) ReserveStorage(_ context.Context, tenantID string, bytes int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if bytes < 0 {
		return false, errors.Wrap(repository.ErrInvalidInput, "negative reservation")
	}
	t, ok := r.s.tenants[tenantID]
	if !ok || t.StorageUsedBytes+bytes > t.StorageQuotaBytes {
		return false, nil
	}
	t.StorageUsedBytes += bytes
	return true, nil
}

func (r *tenantRepository) ReleaseStorage(_ context.Context, tenantID string, bytes int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[tenantID]
	if !ok {
		return errors.Errorf("tenant %s not found while releasing storage", tenantID)
	}
	t.StorageUsedBytes -= bytes
	if t.StorageUsedBytes < 0 {
		t.StorageUsedBytes = 0
	}
	return nil
}

func (r *tenantRepository) IncrementTrialCaptures(_ context.Context, tenantID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tenants[tenantID]; ok {
		t.TrialCapturesUsed++
	}
	return nil
}

type documentRepository struct{ s *Store }

func (r *documentRepository) GetByID(_ context.Context, id string) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.documents[id]; ok {
		out := *d
		return &out, nil
	}
	return nil, nil
}

func (r *documentRepository) GetByPublicID(_ context.Context, tenantID, publicID string) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.documents {
		if d.TenantID == tenantID && d.PublicID == publicID {
			out := *d
			return &out, nil
		}
	}
	return nil, nil
}

func (r *documentRepository) SetProposalAttachment(_ context.Context, documentID, attachmentID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documents[documentID]
	if !ok || d.HasProposal() {
		return false, nil
	}
	d.ProposalAttachmentID = &attachmentID
	return true, nil
}

func (r *documentRepository) SetProposalLink(_ context.Context, documentID, link string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documents[documentID]
	if !ok || d.HasProposal() {
		return false, nil
	}
	d.ProposalLink = &link
	return true, nil
}
