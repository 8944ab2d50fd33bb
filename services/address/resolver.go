package address

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

const (
	DiagnosticNoAddress        = "No valid BCC address found in recipients"
	DiagnosticMissingDocument  = "BCC address has no document identifier"
	DiagnosticTenantNotFound   = "No organization found for BCC address"
	DiagnosticDocumentNotFound = "No document found for BCC address"
)

type resolver struct {
	inboundDomain string
	tenants       interfaces.TenantRepository
	documents     interfaces.DocumentRepository
}

func NewResolver(inboundDomain string, tenants interfaces.TenantRepository, documents interfaces.DocumentRepository) interfaces.AddressResolver {
	return &resolver{inboundDomain: inboundDomain, tenants: tenants, documents: documents}
}

// Resolve scans recipients in order. An address carrying a document id wins
// over a tenant-only one; routing misses come back as Matched=false with a
// diagnostic, never as an error.
func (r *resolver) Resolve(ctx context.Context, recipients []string) (*dto.AddressResolution, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AddressResolver.Resolve")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("recipients.count", len(recipients))

	var tenantOnly *dto.AddressMatch
	var match *dto.AddressMatch
	for _, recipient := range recipients {
		for _, addr := range utils.SplitAddressList(recipient) {
			candidate, ok := Parse(addr, r.inboundDomain)
			if !ok {
				continue
			}
			if candidate.DocumentPublicID == "" {
				if tenantOnly == nil {
					tenantOnly = candidate
				}
				continue
			}
			match = candidate
			break
		}
		if match != nil {
			break
		}
	}

	if match == nil {
		if tenantOnly != nil {
			return &dto.AddressResolution{Match: tenantOnly, Diagnostic: DiagnosticMissingDocument}, nil
		}
		return &dto.AddressResolution{Diagnostic: DiagnosticNoAddress}, nil
	}
	span.LogKV("match.tenant", match.TenantShortID, "match.document", match.DocumentPublicID)

	tenant, err := r.tenants.GetByShortID(ctx, match.TenantShortID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if tenant == nil {
		return &dto.AddressResolution{Match: match, Diagnostic: DiagnosticTenantNotFound}, nil
	}

	document, err := r.documents.GetByPublicID(ctx, tenant.ID, match.DocumentPublicID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if document == nil {
		return &dto.AddressResolution{Match: match, Tenant: tenant, Diagnostic: DiagnosticDocumentNotFound}, nil
	}

	return &dto.AddressResolution{
		Matched:  true,
		Match:    match,
		Tenant:   tenant,
		Document: document,
	}, nil
}
