package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/customeros/bccstack/api/errors"
	"github.com/customeros/bccstack/api/middleware"
	"github.com/customeros/bccstack/dto"
	bccerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/logger"
)

type fakeVerifier struct {
	provider enum.Provider
	err      error
	material dto.SignatureMaterial
}

func (v *fakeVerifier) Provider() enum.Provider { return v.provider }

func (v *fakeVerifier) Verify(_ context.Context, material dto.SignatureMaterial) error {
	v.material = material
	return v.err
}

type fakeProcessor struct {
	mu         sync.Mutex
	deliveries []*dto.InboundDelivery
	result     *dto.CaptureResult
	err        error
}

func (p *fakeProcessor) Process(_ context.Context, delivery *dto.InboundDelivery) (*dto.CaptureResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, delivery)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type fakeStatusService struct {
	tenant string
}

func (s *fakeStatusService) GetStatus(_ context.Context, tenantID string) (*dto.CaptureStatusResponse, error) {
	s.tenant = tenantID
	if tenantID == "" {
		return nil, bccerrors.ErrTenantMissing
	}
	return &dto.CaptureStatusResponse{HasCapture: false}, nil
}

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()
	return log
}

func newRouter(t *testing.T, verifier *fakeVerifier, processor *fakeProcessor, maxRequestBytes int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h, err := InitHandlers(Dependencies{
		RelayAVerifier:  verifier,
		RelayBVerifier:  verifier,
		Processor:       processor,
		MaxRequestBytes: maxRequestBytes,
	}, testLogger())
	require.NoError(t, err)

	r := gin.New()
	r.GET("/health", HealthCheck)
	r.POST("/v1/inbound/relay-a", h.RelayA.Receive())
	r.POST("/v1/inbound/relay-b", h.RelayB.Receive())
	return r
}

func processedResult() *dto.CaptureResult {
	return dto.ProcessedResult("ing_1", "doc-1", true)
}

func relayABody(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"From":              "Jane <jane@acme.com>",
		"To":                "bcc+ORG1+DOC1@in.example.com, bob@acme.com",
		"Cc":                "",
		"OriginalRecipient": "bcc+ORG1+DOC1@in.example.com",
		"Subject":           "Proposal",
		"MessageID":         "<msg-1@acme.com>",
		"TextBody":          "see attached",
		"HtmlBody":          "",
		"Attachments": []map[string]any{{
			"Name":          "proposal.pdf",
			"Content":       base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test")),
			"ContentType":   "application/pdf",
			"ContentLength": 13,
		}},
	}
	for k, v := range overrides {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func postRelayA(r *gin.Engine, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/inbound/relay-a", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRelayATimestamp, "1772366400")
	req.Header.Set(HeaderRelayASignature, "abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	r := newRouter(t, &fakeVerifier{}, &fakeProcessor{}, 1<<20)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestRelayA_Processed(t *testing.T) {
	verifier := &fakeVerifier{provider: enum.ProviderRelayA}
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, verifier, processor, 1<<20)

	body := relayABody(t, nil)
	w := postRelayA(r, body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decodeBody(t, w)
	assert.Equal(t, "processed", out["status"])
	assert.Equal(t, "ing_1", out["id"])
	assert.Equal(t, true, out["attachmentAccepted"])

	assert.Equal(t, body, verifier.material.Body)
	assert.Equal(t, "1772366400", verifier.material.Timestamp)
	assert.Equal(t, "abc123", verifier.material.Signature)

	require.Len(t, processor.deliveries, 1)
	d := processor.deliveries[0]
	assert.Equal(t, enum.ProviderRelayA, d.Provider)
	assert.Equal(t, "<msg-1@acme.com>", d.MessageID)
	assert.Equal(t, []string{"bcc+ORG1+DOC1@in.example.com", "bob@acme.com"}, d.To)
	assert.Equal(t, []string{"bcc+ORG1+DOC1@in.example.com"}, d.MatchedRecipients)
	assert.Equal(t, "1772366400", d.Timestamp)
	assert.NotEmpty(t, d.RemoteIP)
	require.Len(t, d.Attachments, 1)
	assert.Equal(t, "proposal.pdf", d.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4 test"), d.Attachments[0].Data)
	assert.Equal(t, int64(13), d.Attachments[0].DeclaredSize)
}

func TestRelayA_SignatureRejectedBeforeParsing(t *testing.T) {
	verifier := &fakeVerifier{err: bccerrors.Auth(bccerrors.ErrSignatureInvalid)}
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, verifier, processor, 1<<20)

	w := postRelayA(r, []byte("not even json"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apierrors.CodeUnauthorized, decodeBody(t, w)["code"])
	assert.Empty(t, processor.deliveries)
}

func TestRelayA_SchemaViolation(t *testing.T) {
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, &fakeVerifier{}, processor, 1<<20)

	w := postRelayA(r, relayABody(t, map[string]any{"From": nil}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, apierrors.CodeBadInput, out["code"])
	assert.NotEmpty(t, out["message"])
	assert.Empty(t, processor.deliveries)
}

func TestRelayA_MalformedJSON(t *testing.T) {
	r := newRouter(t, &fakeVerifier{}, &fakeProcessor{}, 1<<20)

	w := postRelayA(r, []byte(`{"From":`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelayA_UndecodableAttachmentIsSkipped(t *testing.T) {
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, &fakeVerifier{}, processor, 1<<20)

	body := relayABody(t, map[string]any{
		"Attachments": []map[string]any{
			{"Name": "broken.pdf", "Content": "!!not base64!!"},
			{"Name": "proposal.pdf", "Content": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test"))},
		},
	})
	w := postRelayA(r, body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, processor.deliveries, 1)
	delivery := processor.deliveries[0]
	require.Len(t, delivery.Attachments, 1)
	assert.Equal(t, "proposal.pdf", delivery.Attachments[0].Filename)
	assert.Equal(t, []string{"broken.pdf"}, delivery.UndecodableAttachments)
	assert.Equal(t, []string{"proposal.pdf", "broken.pdf"}, delivery.CandidateFilenames())
}

func TestRelayA_BodyTooLarge(t *testing.T) {
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, &fakeVerifier{}, processor, 64)

	w := postRelayA(r, relayABody(t, nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, processor.deliveries)
}

func TestRelayA_ProcessorErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"rate limited", bccerrors.RateLimited(30 * time.Second), http.StatusTooManyRequests, apierrors.CodeRateLimited},
		{"validation", bccerrors.Validation(bccerrors.ErrTenantMissing), http.StatusBadRequest, apierrors.CodeBadInput},
		{"transient", bccerrors.Transient(bccerrors.ErrStorageUploadFailed), http.StatusInternalServerError, apierrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, &fakeVerifier{}, &fakeProcessor{err: tt.err}, 1<<20)

			w := postRelayA(r, relayABody(t, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			out := decodeBody(t, w)
			assert.Equal(t, tt.wantCode, out["code"])
			if tt.wantStatus == http.StatusTooManyRequests {
				assert.Equal(t, "30", w.Header().Get("Retry-After"))
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, out, "message")
			}
		})
	}
}

func TestRelayA_HandledOutcomesAre200(t *testing.T) {
	results := []*dto.CaptureResult{
		dto.DuplicateResult("ing_1", enum.IngestionStatusProcessed),
		dto.UnmatchedResult("ing_2"),
		dto.RejectedResult("ing_3", enum.IngestionStatusRejectedQuotaExceeded),
	}
	for _, result := range results {
		t.Run(string(result.Status), func(t *testing.T) {
			r := newRouter(t, &fakeVerifier{}, &fakeProcessor{result: result}, 1<<20)

			w := postRelayA(r, relayABody(t, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, string(result.Status), decodeBody(t, w)["status"])
		})
	}
}

type relayBFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func relayBRequest(t *testing.T, fields map[string]string, files []relayBFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="` + f.field + `"; filename="` + f.filename + `"`}
		header["Content-Type"] = []string{f.contentType}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/inbound/relay-b", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func relayBFields() map[string]string {
	return map[string]string{
		"sender":           "jane@acme.com",
		"from":             "Jane <jane@acme.com>",
		"recipient":        "bcc+ORG1+DOC1@in.example.com",
		"To":               "bob@acme.com",
		"Cc":               "carol@acme.com",
		"subject":          "Proposal",
		"body-plain":       "see attached",
		"body-html":        "<p>see attached</p>",
		"Message-Id":       "<msg-2@acme.com>",
		"attachment-count": "2",
		"timestamp":        "1772366400",
		"token":            "tok",
		"signature":        "sig",
	}
}

func TestRelayB_Processed(t *testing.T) {
	verifier := &fakeVerifier{provider: enum.ProviderRelayB}
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, verifier, processor, 1<<20)

	req := relayBRequest(t, relayBFields(), []relayBFile{
		{field: "attachment-1", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")},
		{field: "attachment-2", filename: "proposal.pdf", contentType: "application/pdf", data: []byte("%PDF-1.7")},
		{field: "attachment-3", filename: "ignored.pdf", contentType: "application/pdf", data: []byte("%PDF-1.7")},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, dto.SignatureMaterial{Timestamp: "1772366400", Token: "tok", Signature: "sig"}, verifier.material)

	require.Len(t, processor.deliveries, 1)
	d := processor.deliveries[0]
	assert.Equal(t, enum.ProviderRelayB, d.Provider)
	assert.Equal(t, "Jane <jane@acme.com>", d.From)
	assert.Equal(t, []string{"bob@acme.com"}, d.To)
	assert.Equal(t, []string{"carol@acme.com"}, d.Cc)
	assert.Equal(t, []string{"bcc+ORG1+DOC1@in.example.com"}, d.MatchedRecipients)
	assert.Equal(t, "<p>see attached</p>", d.HTMLBody)
	assert.Equal(t, "1772366400", d.Timestamp)
	require.Len(t, d.Attachments, 2)
	assert.Equal(t, "notes.txt", d.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", d.Attachments[1].ContentType)
	assert.Equal(t, []byte("%PDF-1.7"), d.Attachments[1].Data)
}

func TestRelayB_SignatureRejected(t *testing.T) {
	verifier := &fakeVerifier{err: bccerrors.Auth(bccerrors.ErrSignatureExpired)}
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, verifier, processor, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, relayBRequest(t, relayBFields(), nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, processor.deliveries)
}

func TestRelayB_InvalidAttachmentCount(t *testing.T) {
	fields := relayBFields()
	fields["attachment-count"] = "lots"
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, &fakeVerifier{}, processor, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, relayBRequest(t, fields, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, processor.deliveries)
}

func TestRelayB_MissingSender(t *testing.T) {
	fields := relayBFields()
	delete(fields, "sender")
	delete(fields, "from")
	r := newRouter(t, &fakeVerifier{}, &fakeProcessor{result: processedResult()}, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, relayBRequest(t, fields, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelayB_URLEncodedForm(t *testing.T) {
	processor := &fakeProcessor{result: processedResult()}
	r := newRouter(t, &fakeVerifier{}, processor, 1<<20)

	form := "from=jane%40acme.com&recipient=bcc%2BORG1%2BDOC1%40in.example.com&body-plain=hi"
	req := httptest.NewRequest(http.MethodPost, "/v1/inbound/relay-b", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, processor.deliveries, 1)
	assert.Equal(t, []string{"bcc+ORG1+DOC1@in.example.com"}, processor.deliveries[0].MatchedRecipients)
	assert.Empty(t, processor.deliveries[0].Attachments)
}

func statusRouter(secret string, svc *fakeStatusService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/inbound/status",
		middleware.TenantAuthMiddleware(secret),
		middleware.CustomContextMiddleware("bccstack"),
		CaptureStatus(svc))
	return r
}

func TestCaptureStatus(t *testing.T) {
	const secret = "status-secret"
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.TenantClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		OrgID:            "tenant-1",
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	t.Run("authenticated tenant", func(t *testing.T) {
		svc := &fakeStatusService{}
		req := httptest.NewRequest(http.MethodGet, "/v1/inbound/status", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()
		statusRouter(secret, svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tenant-1", svc.tenant)
		assert.Equal(t, false, decodeBody(t, w)["hasCapture"])
	})

	t.Run("missing token", func(t *testing.T) {
		svc := &fakeStatusService{}
		w := httptest.NewRecorder()
		statusRouter(secret, svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/inbound/status", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, svc.tenant)
	})

	t.Run("wrong secret", func(t *testing.T) {
		svc := &fakeStatusService{}
		req := httptest.NewRequest(http.MethodGet, "/v1/inbound/status", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()
		statusRouter("other-secret", svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
