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

type relayBVerifier struct {
	hmacVerifier
}

// NewRelayBVerifier checks the token/timestamp/signature triple sent as form
// fields: signature = hex(HMAC-SHA256(key, timestamp + token)).
func NewRelayBVerifier(signingKey string, window time.Duration, allowUnsigned bool, log logger.Logger) interfaces.SignatureVerifier {
	return &relayBVerifier{hmacVerifier{
		secret:        signingKey,
		window:        window,
		allowUnsigned: allowUnsigned,
		log:           log,
		now:           time.Now,
	}}
}

func (v *relayBVerifier) Provider() enum.Provider {
	return enum.ProviderRelayB
}

func (v *relayBVerifier) Verify(ctx context.Context, material dto.SignatureMaterial) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "RelayBVerifier.Verify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	proceed, err := v.checkSecret(v.Provider().String())
	if !proceed {
		tracing.TraceErr(span, err)
		return err
	}

	if material.Token == "" || material.Timestamp == "" || material.Signature == "" {
		err = internalerrors.Auth(internalerrors.ErrSignatureMissing)
		tracing.TraceErr(span, err)
		return err
	}
	if err = v.checkTimestamp(material.Timestamp); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	expected := v.sign([]byte(material.Timestamp), []byte(material.Token))
	if !equalHex(material.Signature, expected) {
		err = internalerrors.Auth(internalerrors.ErrSignatureInvalid)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
