package capture

import (
	"context"
	"unicode/utf8"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/internal/models"
	"github.com/customeros/bccstack/internal/tracing"
)

const maxParsedLinkChars = 2000

// applyLinkFallback runs when no attachment was accepted. It returns the link
// written to the document, or "" with the diagnostics explaining why not.
func (p *processor) applyLinkFallback(ctx context.Context, document *models.Document, delivery *dto.InboundDelivery) (string, []string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CaptureProcessor.applyLinkFallback")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	current, err := p.repositories.DocumentRepository.GetByID(ctx, document.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		p.log.Warnf("Failed to reload document %s, using resolved copy: %v", document.ID, err)
		current = document
	}
	if current == nil {
		current = document
	}
	if current.HasProposal() {
		span.LogKV("result", "proposal exists")
		return "", []string{DiagnosticProposalExists}
	}

	link := p.links.FromHTML(delivery.HTMLBody)
	if link == "" {
		link = p.links.FromText(delivery.TextBody)
	}
	if link == "" {
		span.LogKV("result", "no link")
		return "", []string{DiagnosticNoContent}
	}
	if utf8.RuneCountInString(link) > maxParsedLinkChars {
		// a cut URL would be written permanently; treat it as no link
		span.LogKV("result", "link too long", "linkChars", utf8.RuneCountInString(link))
		return "", []string{DiagnosticLinkTooLong}
	}
	span.LogKV("link", link)

	updated, err := p.repositories.DocumentRepository.SetProposalLink(ctx, document.ID, link)
	if err != nil {
		tracing.TraceErr(span, err)
		p.log.Errorf("Failed to set proposal link on document %s: %v", document.ID, err)
		return "", []string{"Link found but could not be saved to document"}
	}
	if !updated {
		return "", []string{DiagnosticProposalRaced}
	}
	return link, nil
}
