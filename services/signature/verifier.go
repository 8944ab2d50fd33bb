package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	internalerrors "github.com/customeros/bccstack/internal/errors"
	"github.com/customeros/bccstack/internal/logger"
)

// hmacVerifier holds what both relays share: a secret, a replay window and
// the unsigned-mode switch for local development.
type hmacVerifier struct {
	secret        string
	window        time.Duration
	allowUnsigned bool
	log           logger.Logger
	now           func() time.Time
}

// checkSecret reports whether verification should go ahead. With no secret it
// either passes (unsigned mode) or fails closed.
func (v *hmacVerifier) checkSecret(provider string) (bool, error) {
	if v.secret != "" {
		return true, nil
	}
	if v.allowUnsigned {
		v.log.Warnf("%s signing secret not configured, accepting unsigned delivery", provider)
		return false, nil
	}
	return false, internalerrors.Auth(internalerrors.ErrSignatureNotConfigured)
}

func (v *hmacVerifier) checkTimestamp(timestamp string) error {
	seconds, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return internalerrors.Auth(internalerrors.ErrSignatureInvalid)
	}
	delta := v.now().Sub(time.Unix(seconds, 0))
	if delta < 0 {
		delta = -delta
	}
	if delta > v.window {
		return internalerrors.Auth(internalerrors.ErrSignatureExpired)
	}
	return nil
}

func (v *hmacVerifier) sign(parts ...[]byte) string {
	mac := hmac.New(sha256.New, []byte(v.secret))
	for _, p := range parts {
		_, _ = mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

func equalHex(provided, expected string) bool {
	provided = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(provided), "sha256="))
	return hmac.Equal([]byte(provided), []byte(expected))
}
