package address

import (
	"regexp"
	"strings"

	"github.com/customeros/bccstack/dto"
)

// {localpart}+{tenantShortId}[+{documentPublicId}]@{domain}
var bccAddressPattern = regexp.MustCompile(`^([A-Za-z0-9._-]+)\+([A-Za-z0-9_-]+)(?:\+([A-Za-z0-9_-]+))?@([A-Za-z0-9.-]+)$`)

// Parse matches a single bare address against the capture address scheme for
// inboundDomain. The domain comparison is case-insensitive.
func Parse(address, inboundDomain string) (*dto.AddressMatch, bool) {
	address = strings.TrimSpace(address)
	parts := bccAddressPattern.FindStringSubmatch(address)
	if parts == nil {
		return nil, false
	}
	if !strings.EqualFold(parts[4], strings.TrimSpace(inboundDomain)) {
		return nil, false
	}
	return &dto.AddressMatch{
		Address:          address,
		TenantShortID:    parts[2],
		DocumentPublicID: parts[3],
	}, true
}
