package usecase

import (
	"time"

	"github.com/clinicore/billing-engine/internal/domain/provider"
)

// GatewayResolver returns the gateway for a provider name. An empty name
// selects the default provider.
type GatewayResolver interface {
	GetGatewayFromString(providerStr string) (provider.Gateway, error)
}

// Clock returns the current time
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
