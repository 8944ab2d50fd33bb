package handlers

import (
	"github.com/customeros/bccstack/interfaces"
	"github.com/customeros/bccstack/internal/logger"
)

type APIHandlers struct {
	RelayA *RelayAHandler
	RelayB *RelayBHandler
}

type Dependencies struct {
	RelayAVerifier  interfaces.SignatureVerifier
	RelayBVerifier  interfaces.SignatureVerifier
	Processor       interfaces.CaptureProcessor
	MaxRequestBytes int64
}

func InitHandlers(deps Dependencies, log logger.Logger) (*APIHandlers, error) {
	relayA, err := NewRelayAHandler(deps.RelayAVerifier, deps.Processor, deps.MaxRequestBytes, log)
	if err != nil {
		return nil, err
	}
	return &APIHandlers{
		RelayA: relayA,
		RelayB: NewRelayBHandler(deps.RelayBVerifier, deps.Processor, deps.MaxRequestBytes, log),
	}, nil
}
