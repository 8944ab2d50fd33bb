package signature

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/bccstack/dto"
	"github.com/customeros/bccstack/interfaces"
	internalerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/tracing"
)

type relayAVerifier struct {
	hmacVerifier
}

// NewRelayAVerifier checks hex(HMAC-SHA256(secret, timestamp || body)).
func NewRelayAVerifier(secret string, window time.Duration, allowUnsigned bool, log logger.Logger) interfaces.SignatureVerifier {
	return &relayAVerifier{hmacVerifier{
		secret:        secret,
		window:        window,
		allowUnsigned: allowUnsigned,
		log:           log,
		now:           time.Now,
	}}
}

func (v *relayAVerifier) Provider() enum.Provider {
	return enum.ProviderRelayA
}

func (v *relayAVerifier) Verify(ctx context.Context, material dto.SignatureMaterial) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "RelayAVerifier.Verify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	proceed, err := v.checkSecret(v.Provider().String())
	if !proceed {
		tracing.TraceErr(span, err)
		return err
	}

	if material.Signature == "" || material.Timestamp == "" {
		err = internalerrors.Auth(internalerrors.ErrSignatureMissing)
		tracing.TraceErr(span, err)
		return err
	}
	if err = v.checkTimestamp(material.Timestamp); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	expected := v.sign([]byte(material.Timestamp), material.Body)
	if !equalHex(material.Signature, expected) {
		err = internalerrors.Auth(internalerrors.ErrSignatureInvalid)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
