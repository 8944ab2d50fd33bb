package handlers

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	bccerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

const (
	HeaderRelayASignature = "X-Relay-Signature"
	HeaderRelayATimestamp = "X-Relay-Timestamp"

	relayASchemaURL = "https://bccstack.customeros.ai/schemas/relay_a.schema.json"
)

//go:embed schemas/relay_a.schema.json
var relayASchema []byte

// relayAPayload is the JSON body relay A posts for each inbound message.
type relayAPayload struct {
	From              string             `json:"From"`
	To                string             `json:"To"`
	Cc                string             `json:"Cc"`
	OriginalRecipient string             `json:"OriginalRecipient"`
	Subject           string             `json:"Subject"`
	MessageID         string             `json:"MessageID"`
	TextBody          string             `json:"TextBody"`
	HtmlBody          string             `json:"HtmlBody"`
	Attachments       []relayAAttachment `json:"Attachments"`
}

type relayAAttachment struct {
	Name          string `json:"Name"`
	Content       string `json:"Content"`
	ContentType   string `json:"ContentType"`
	ContentLength int64  `json:"ContentLength"`
}

type RelayAHandler struct {
	verifier        interfaces.SignatureVerifier
	processor       interfaces.CaptureProcessor
	schema          *jsonschema.Schema
	maxRequestBytes int64
	log             logger.Logger
}

func NewRelayAHandler(verifier interfaces.SignatureVerifier, processor interfaces.CaptureProcessor, maxRequestBytes int64, log logger.Logger) (*RelayAHandler, error) {
	schema, err := compileRelayASchema()
	if err != nil {
		return nil, err
	}
	return &RelayAHandler{
		verifier:        verifier,
		processor:       processor,
		schema:          schema,
		maxRequestBytes: maxRequestBytes,
		log:             log,
	}, nil
}

func compileRelayASchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(relayASchema))
	if err != nil {
		return nil, errors.Wrap(err, "parse relay A schema")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(relayASchemaURL, doc); err != nil {
		return nil, errors.Wrap(err, "add relay A schema")
	}
	schema, err := compiler.Compile(relayASchemaURL)
	if err != nil {
		return nil, errors.Wrap(err, "compile relay A schema")
	}
	return schema, nil
}

// Receive handles POST /v1/inbound/relay-a. The signature is checked against
// the raw body before anything is parsed.
func (h *RelayAHandler) Receive() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.SetProviderInContext(c.Request.Context(), enum.ProviderRelayA.String())
		span, ctx := opentracing.StartSpanFromContext(ctx, "RelayAHandler.Receive")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		body, err := readBody(c, h.maxRequestBytes)
		if err != nil {
			respondError(c, span, err)
			return
		}

		err = h.verifier.Verify(ctx, dto.SignatureMaterial{
			Body:      body,
			Timestamp: c.GetHeader(HeaderRelayATimestamp),
			Signature: c.GetHeader(HeaderRelayASignature),
		})
		if err != nil {
			h.log.Warnf("Rejected relay A delivery from %s: %v", c.ClientIP(), err)
			respondError(c, span, err)
			return
		}

		payload, err := h.parse(body)
		if err != nil {
			respondError(c, span, err)
			return
		}

		delivery := payload.toDelivery()
		if len(delivery.UndecodableAttachments) > 0 {
			h.log.Warnf("Relay A delivery %s has undecodable attachments: %s", delivery.MessageID, strings.Join(delivery.UndecodableAttachments, ", "))
		}
		delivery.Timestamp = c.GetHeader(HeaderRelayATimestamp)
		delivery.RemoteIP = c.ClientIP()

		result, err := h.processor.Process(ctx, delivery)
		if err != nil {
			respondError(c, span, err)
			return
		}
		respondResult(c, span, result)
	}
}

func (h *RelayAHandler) parse(body []byte) (*relayAPayload, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, bccerrors.Validation(errors.Wrap(err, "invalid JSON"))
	}
	if err := h.schema.Validate(inst); err != nil {
		return nil, bccerrors.Validation(err)
	}

	var payload relayAPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, bccerrors.Validation(errors.Wrap(err, "invalid payload"))
	}
	return &payload, nil
}

func (p *relayAPayload) toDelivery() *dto.InboundDelivery {
	delivery := &dto.InboundDelivery{
		Provider:   enum.ProviderRelayA,
		MessageID:  strings.TrimSpace(p.MessageID),
		From:       p.From,
		To:         utils.SplitAddressList(p.To),
		Cc:         utils.SplitAddressList(p.Cc),
		Subject:    p.Subject,
		TextBody:   p.TextBody,
		HTMLBody:   p.HtmlBody,
		ReceivedAt: utils.Now(),
	}
	if p.OriginalRecipient != "" {
		delivery.MatchedRecipients = utils.SplitAddressList(p.OriginalRecipient)
	}

	for _, a := range p.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			// one broken part must not fail the whole delivery
			delivery.UndecodableAttachments = append(delivery.UndecodableAttachments, a.Name)
			continue
		}
		delivery.Attachments = append(delivery.Attachments, dto.InboundAttachment{
			Filename:     a.Name,
			ContentType:  a.ContentType,
			DeclaredSize: a.ContentLength,
			Data:         data,
		})
	}
	return delivery
}
