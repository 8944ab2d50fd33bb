package entitlement

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/tracing"
)

type entitlementService struct {
	tenants    interfaces.TenantRepository
	trialLimit int
}

// NewEntitlementService decides from the tenant's plan tier: paid captures
// unless the feature was switched off, trial captures until trialLimit
// successful captures, free never captures.
func NewEntitlementService(tenants interfaces.TenantRepository, trialLimit int) interfaces.EntitlementService {
	return &entitlementService{tenants: tenants, trialLimit: trialLimit}
}

func (s *entitlementService) Check(ctx context.Context, tenant *models.Tenant) (*dto.EntitlementDecision, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EntitlementService.Check")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	decision := s.decide(tenant)
	span.LogKV("plan", tenant.PlanTier.String(), "allowed", decision.Allowed, "reason", decision.Reason)
	return decision, nil
}

func (s *entitlementService) decide(tenant *models.Tenant) *dto.EntitlementDecision {
	switch tenant.PlanTier {
	case enum.PlanTierPaid:
		if !tenant.InboundCaptureEnabled {
			return denied(enum.IngestionStatusRejectedFeatureDisabled, "inbound capture disabled for organization")
		}
		return &dto.EntitlementDecision{Allowed: true}
	case enum.PlanTierTrial:
		if !tenant.InboundCaptureEnabled {
			return denied(enum.IngestionStatusRejectedFeatureDisabled, "inbound capture disabled for organization")
		}
		if tenant.TrialCapturesUsed >= s.trialLimit {
			return denied(enum.IngestionStatusRejectedTrialLimit, "trial capture limit reached")
		}
		return &dto.EntitlementDecision{Allowed: true}
	default:
		return denied(enum.IngestionStatusRejectedFeatureDisabled, "inbound capture not included in plan")
	}
}

func denied(status enum.IngestionStatus, reason string) *dto.EntitlementDecision {
	return &dto.EntitlementDecision{Allowed: false, Status: status, Reason: reason}
}

// RecordCapture advances the trial counter. Other tiers have nothing to count.
func (s *entitlementService) RecordCapture(ctx context.Context, tenant *models.Tenant) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EntitlementService.RecordCapture")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if tenant.PlanTier != enum.PlanTierTrial {
		return nil
	}
	if err := s.tenants.IncrementTrialCaptures(ctx, tenant.ID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
