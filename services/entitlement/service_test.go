package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/repository/inmemory"
)

func TestEntitlementService_Check(t *testing.T) {
	svc := NewEntitlementService(inmemory.NewStore().Repositories().TenantRepository, 3)

	tests := []struct {
		name    string
		tenant  models.Tenant
		allowed bool
		status  enum.IngestionStatus
	}{
		{name: "paid", tenant: models.Tenant{PlanTier: enum.PlanTierPaid, InboundCaptureEnabled: true}, allowed: true},
		{name: "paid switched off", tenant: models.Tenant{PlanTier: enum.PlanTierPaid}, status: enum.IngestionStatusRejectedFeatureDisabled},
		{name: "trial under limit", tenant: models.Tenant{PlanTier: enum.PlanTierTrial, InboundCaptureEnabled: true, TrialCapturesUsed: 2}, allowed: true},
		{name: "trial at limit", tenant: models.Tenant{PlanTier: enum.PlanTierTrial, InboundCaptureEnabled: true, TrialCapturesUsed: 3}, status: enum.IngestionStatusRejectedTrialLimit},
		{name: "free", tenant: models.Tenant{PlanTier: enum.PlanTierFree, InboundCaptureEnabled: true}, status: enum.IngestionStatusRejectedFeatureDisabled},
		{name: "unknown tier", tenant: models.Tenant{PlanTier: "enterprise-legacy", InboundCaptureEnabled: true}, status: enum.IngestionStatusRejectedFeatureDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := tt.tenant
			decision, err := svc.Check(context.Background(), &tenant)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.Equal(t, tt.status, decision.Status)
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestEntitlementService_RecordCaptureCountsTrialOnly(t *testing.T) {
	store := inmemory.NewStore()
	store.PutTenant(models.Tenant{ID: "trial", PlanTier: enum.PlanTierTrial})
	store.PutTenant(models.Tenant{ID: "paid", PlanTier: enum.PlanTierPaid})
	svc := NewEntitlementService(store.Repositories().TenantRepository, 3)

	trial := store.Tenant("trial")
	paid := store.Tenant("paid")
	require.NoError(t, svc.RecordCapture(context.Background(), &trial))
	require.NoError(t, svc.RecordCapture(context.Background(), &paid))

	assert.Equal(t, 1, store.Tenant("trial").TrialCapturesUsed)
	assert.Equal(t, 0, store.Tenant("paid").TrialCapturesUsed)
}
