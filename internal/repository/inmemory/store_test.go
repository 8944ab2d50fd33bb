package inmemory

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/models"
)

func TestRecordRepository_UniqueKeyAndGuardedClose(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	first := &models.IngestionRecord{Provider: enum.ProviderRelayA, IdempotencyKey: "relayA:msg-abc", Status: enum.IngestionStatusPending}
	require.NoError(t, repos.IngestionRecordRepository.Create(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.Nil(t, first.ProcessedAt)

	second := &models.IngestionRecord{Provider: enum.ProviderRelayA, IdempotencyKey: "relayA:msg-abc", Status: enum.IngestionStatusPending}
	err := repos.IngestionRecordRepository.Create(ctx, second)
	assert.True(t, errors.Is(err, internalerrors.ErrDuplicateDelivery))

	require.NoError(t, repos.IngestionRecordRepository.Close(ctx, first.ID, models.IngestionRecordClose{Status: enum.IngestionStatusProcessed}))
	err = repos.IngestionRecordRepository.Close(ctx, first.ID, models.IngestionRecordClose{Status: enum.IngestionStatusUnmatched})
	assert.True(t, errors.Is(err, internalerrors.ErrRecordNotPending))

	stored, err := repos.IngestionRecordRepository.GetByIdempotencyKey(ctx, "relayA:msg-abc")
	require.NoError(t, err)
	assert.Equal(t, enum.IngestionStatusProcessed, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestRecordRepository_AnnotateErrorOnlyTouchesPending(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	pending := &models.IngestionRecord{Provider: enum.ProviderRelayA, IdempotencyKey: "relayA:pending", Status: enum.IngestionStatusPending}
	closed := &models.IngestionRecord{Provider: enum.ProviderRelayA, IdempotencyKey: "relayA:closed", Status: enum.IngestionStatusPending}
	require.NoError(t, repos.IngestionRecordRepository.Create(ctx, pending))
	require.NoError(t, repos.IngestionRecordRepository.Create(ctx, closed))
	require.NoError(t, repos.IngestionRecordRepository.Close(ctx, closed.ID, models.IngestionRecordClose{Status: enum.IngestionStatusProcessed}))

	require.NoError(t, repos.IngestionRecordRepository.AnnotateError(ctx, pending.ID, "still pending"))
	require.NoError(t, repos.IngestionRecordRepository.AnnotateError(ctx, closed.ID, "still pending"))

	annotated := store.Record(pending.ID)
	require.NotNil(t, annotated.ErrorMessage)
	assert.Equal(t, "still pending", *annotated.ErrorMessage)

	untouched := store.Record(closed.ID)
	assert.Equal(t, enum.IngestionStatusProcessed, untouched.Status)
	assert.Nil(t, untouched.ErrorMessage)
}

func TestRecordRepository_TerminalCreateSetsProcessedAt(t *testing.T) {
	repos := NewStore().Repositories()
	record := &models.IngestionRecord{Provider: enum.ProviderRelayB, IdempotencyKey: "relayB:x", Status: enum.IngestionStatusUnmatched}
	require.NoError(t, repos.IngestionRecordRepository.Create(context.Background(), record))
	assert.NotNil(t, record.ProcessedAt)
}

func TestTenantRepository_ReserveIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.PutTenant(models.Tenant{ID: "t1", ShortID: "ORG1", StorageQuotaBytes: 100})
	repos := store.Repositories()

	var wg sync.WaitGroup
	var mu sync.Mutex
	reservedTotal := int64(0)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repos.TenantRepository.ReserveStorage(ctx, "t1", 30)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				reservedTotal += 30
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(90), reservedTotal)
	assert.Equal(t, int64(90), store.Tenant("t1").StorageUsedBytes)

	require.NoError(t, repos.TenantRepository.ReleaseStorage(ctx, "t1", 30))
	assert.Equal(t, int64(60), store.Tenant("t1").StorageUsedBytes)
}

func TestDocumentRepository_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.PutDocument(models.Document{ID: "d1", TenantID: "t1", PublicID: "DOC1"})
	repos := store.Repositories()

	written, err := repos.DocumentRepository.SetProposalAttachment(ctx, "d1", "file_1")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = repos.DocumentRepository.SetProposalLink(ctx, "d1", "https://example.com/p")
	require.NoError(t, err)
	assert.False(t, written)

	doc := store.Document("d1")
	assert.Equal(t, "file_1", *doc.ProposalAttachmentID)
	assert.Nil(t, doc.ProposalLink)
}
