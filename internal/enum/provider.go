package enum

// Provider identifies the upstream relay that delivered a webhook.
type Provider string

const (
	ProviderRelayA Provider = "relayA"
	ProviderRelayB Provider = "relayB"
)

func (p Provider) String() string {
	return string(p)
}

func (p Provider) IsValid() bool {
	switch p {
	case ProviderRelayA, ProviderRelayB:
		return true
	}
	return false
}
