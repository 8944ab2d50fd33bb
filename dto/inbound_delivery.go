package dto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"

	apierrors "github.com/customeros/bccstack/api/errors"
	"github.com/customeros/bccstack/internal/enum"
	"github.com/customeros/bccstack/internal/utils"
)

// InboundAttachment is one candidate file as handed over by a relay.
type InboundAttachment struct {
	Filename     string
	ContentType  string
	DeclaredSize int64
	Data         []byte
}

// Size is the actual byte length; the relay's declared size is informational only.
func (a InboundAttachment) Size() int64 {
	return int64(len(a.Data))
}

// InboundDelivery is the provider independent form of a relay webhook. It is
// only produced by the relay parsers in the api layer.
type InboundDelivery struct {
	Provider          enum.Provider
	MessageID         string
	From              string
	To                []string
	Cc                []string
	MatchedRecipients []string
	Subject           string
	TextBody          string
	HTMLBody          string
	Timestamp         string
	ReceivedAt        time.Time
	RemoteIP          string
	Attachments       []InboundAttachment

	// UndecodableAttachments names parts whose content the relay sent in a form that could not be decoded.
	UndecodableAttachments []string
}

// Recipients returns To, Cc and relay matched recipients, deduplicated, in that order.
func (d *InboundDelivery) Recipients() []string {
	all := make([]string, 0, len(d.To)+len(d.Cc)+len(d.MatchedRecipients))
	all = append(all, d.To...)
	all = append(all, d.Cc...)
	all = append(all, d.MatchedRecipients...)
	return utils.UniqueEmails(all)
}

func (d *InboundDelivery) SenderAddress() string {
	addresses := utils.SplitAddressList(d.From)
	if len(addresses) == 0 {
		return ""
	}
	return addresses[0]
}

// BodyChecksum is a hex sha256 over the text and html bodies.
func (d *InboundDelivery) BodyChecksum() string {
	h := sha256.New()
	h.Write([]byte(d.TextBody))
	h.Write([]byte{0})
	h.Write([]byte(d.HTMLBody))
	return hex.EncodeToString(h.Sum(nil))
}

func (d *InboundDelivery) CandidateFilenames() []string {
	names := make([]string, 0, len(d.Attachments)+len(d.UndecodableAttachments))
	for _, a := range d.Attachments {
		names = append(names, utils.Truncate(a.Filename, utils.MaxRawHeaderChars))
	}
	for _, name := range d.UndecodableAttachments {
		names = append(names, utils.Truncate(name, utils.MaxRawHeaderChars))
	}
	return names
}

// Validate checks the fields every later stage relies on. The returned error
// is a *apierrors.MultiErrors.
func (d *InboundDelivery) Validate() error {
	errs := apierrors.NewMultiErrors()

	if !d.Provider.IsValid() {
		errs.Add("provider", "unknown provider", nil)
	}

	sender := d.SenderAddress()
	if sender == "" {
		errs.Add("from", "sender is required", nil)
	} else if validation := mailvalidate.ValidateEmailSyntax(sender); !validation.IsValid {
		errs.Add("from", "sender address is not valid", nil)
	}

	if len(d.Recipients()) == 0 {
		errs.Add("to", "at least one recipient is required", nil)
	}

	for _, a := range d.Attachments {
		if strings.TrimSpace(a.Filename) == "" && len(a.Data) == 0 {
			errs.Add("attachments", "attachment without name or content", nil)
			break
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
