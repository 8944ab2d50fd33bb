package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	apierrors "github.com/customeros/bccstack/api/errors"
	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	bccerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/tracing"
	"github.com/customeros/bccstack/internal/utils"
)

const (
	maxRelayBAttachments  = 50
	relayBMultipartMemory = 8 << 20
)

// RelayBHandler accepts relay B's multipart form posts. Signature fields
// travel inside the form, so parsing comes first.
type RelayBHandler struct {
	verifier        interfaces.SignatureVerifier
	processor       interfaces.CaptureProcessor
	maxRequestBytes int64
	log             logger.Logger
}

func NewRelayBHandler(verifier interfaces.SignatureVerifier, processor interfaces.CaptureProcessor, maxRequestBytes int64, log logger.Logger) *RelayBHandler {
	return &RelayBHandler{
		verifier:        verifier,
		processor:       processor,
		maxRequestBytes: maxRequestBytes,
		log:             log,
	}
}

func (h *RelayBHandler) Receive() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.SetProviderInContext(c.Request.Context(), enum.ProviderRelayB.String())
		span, ctx := opentracing.StartSpanFromContext(ctx, "RelayBHandler.Receive")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes)
		if err := c.Request.ParseMultipartForm(relayBMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			respondError(c, span, bodyError(err))
			return
		}
		if c.Request.MultipartForm != nil {
			defer c.Request.MultipartForm.RemoveAll()
		}

		form := c.Request.PostForm
		err := h.verifier.Verify(ctx, dto.SignatureMaterial{
			Timestamp: form.Get("timestamp"),
			Token:     form.Get("token"),
			Signature: form.Get("signature"),
		})
		if err != nil {
			h.log.Warnf("Rejected relay B delivery from %s: %v", c.ClientIP(), err)
			respondError(c, span, err)
			return
		}

		delivery, err := relayBDelivery(c.Request)
		if err != nil {
			respondError(c, span, err)
			return
		}
		delivery.RemoteIP = c.ClientIP()
		span.LogKV("attachments", len(delivery.Attachments))

		result, err := h.processor.Process(ctx, delivery)
		if err != nil {
			respondError(c, span, err)
			return
		}
		respondResult(c, span, result)
	}
}

func relayBDelivery(r *http.Request) (*dto.InboundDelivery, error) {
	form := r.PostForm
	delivery := &dto.InboundDelivery{
		Provider:   enum.ProviderRelayB,
		MessageID:  form.Get("Message-Id"),
		From:       utils.FirstNonEmpty(form.Get("from"), form.Get("From"), form.Get("sender")),
		To:         utils.SplitAddressList(form.Get("To")),
		Cc:         utils.SplitAddressList(form.Get("Cc")),
		Subject:    utils.FirstNonEmpty(form.Get("subject"), form.Get("Subject")),
		TextBody:   form.Get("body-plain"),
		HTMLBody:   form.Get("body-html"),
		Timestamp:  form.Get("timestamp"),
		ReceivedAt: utils.Now(),
	}
	if recipient := form.Get("recipient"); recipient != "" {
		delivery.MatchedRecipients = utils.SplitAddressList(recipient)
	}

	multi := apierrors.NewMultiErrors()
	count := 0
	if raw := form.Get("attachment-count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			multi.Add("attachment-count", "must be a non-negative integer", err)
		} else {
			count = min(n, maxRelayBAttachments)
		}
	}

	for i := 1; i <= count && r.MultipartForm != nil; i++ {
		field := fmt.Sprintf("attachment-%d", i)
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}
		attachment, err := readFormFile(headers[0])
		if err != nil {
			multi.Add(field, "file could not be read", err)
			continue
		}
		delivery.Attachments = append(delivery.Attachments, *attachment)
	}
	if multi.HasErrors() {
		return nil, bccerrors.Validation(multi)
	}
	if delivery.From == "" {
		return nil, bccerrors.Validation(errors.New("sender is required"))
	}
	return delivery, nil
}

func readFormFile(header *multipart.FileHeader) (*dto.InboundAttachment, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &dto.InboundAttachment{
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		DeclaredSize: header.Size,
		Data:         data,
	}, nil
}
