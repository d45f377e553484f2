package provider

import (
	"fmt"
	"time"

	"github.com/clinicore/billing-engine/internal/config"
	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/clinicore/billing-engine/internal/infrastructure/provider/mercadopago"
	"github.com/clinicore/billing-engine/internal/infrastructure/provider/pagseguro"
	"go.uber.org/zap"
)

// Factory resolves payment gateways by provider type. Every gateway it
// returns is wrapped with the timeout and retry policy.
type Factory struct {
	gateways    map[provider.ProviderType]provider.Gateway
	defaultType provider.ProviderType
	logger      *zap.Logger
}

// NewFactory creates a new provider factory from configuration. Providers
// without credentials are left out.
func NewFactory(cfg *config.ProvidersConfig, logger *zap.Logger) (*Factory, error) {
	f := &Factory{
		gateways:    make(map[provider.ProviderType]provider.Gateway),
		defaultType: provider.ProviderType(cfg.Default),
		logger:      logger,
	}

	if cfg.MercadoPago.AccessToken != "" {
		f.Register(mercadopago.NewGateway(mercadopago.Config{
			BaseURL:       cfg.MercadoPago.BaseURL,
			AccessToken:   cfg.MercadoPago.AccessToken,
			PublicKey:     cfg.MercadoPago.PublicKey,
			WebhookSecret: cfg.MercadoPago.WebhookSecret,
			BackURL:       cfg.MercadoPago.BackURL,
			Timeout:       cfg.RequestTimeout,
		}, logger), cfg.RequestTimeout)
	}
	if cfg.PagSeguro.Token != "" {
		f.Register(pagseguro.NewGateway(pagseguro.Config{
			BaseURL:       cfg.PagSeguro.BaseURL,
			Token:         cfg.PagSeguro.Token,
			WebhookSecret: cfg.PagSeguro.WebhookSecret,
			Timeout:       cfg.RequestTimeout,
		}, logger), cfg.RequestTimeout)
	}

	if len(f.gateways) == 0 {
		return nil, fmt.Errorf("no payment provider configured")
	}
	if _, ok := f.gateways[f.defaultType]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured", f.defaultType)
	}
	return f, nil
}

// NewFactoryWithGateways builds a factory over already constructed gateways
func NewFactoryWithGateways(defaultType provider.ProviderType, logger *zap.Logger, timeout time.Duration, gateways ...provider.Gateway) *Factory {
	f := &Factory{
		gateways:    make(map[provider.ProviderType]provider.Gateway),
		defaultType: defaultType,
		logger:      logger,
	}
	for _, g := range gateways {
		f.Register(g, timeout)
	}
	return f
}

// Register adds g under its provider name
func (f *Factory) Register(g provider.Gateway, timeout time.Duration) {
	f.gateways[provider.ProviderType(g.GetProviderName())] = NewResilientGateway(g, timeout, f.logger)
}

// GetGateway returns the gateway for providerType, or the default one when empty
func (f *Factory) GetGateway(providerType provider.ProviderType) (provider.Gateway, error) {
	if providerType == "" {
		providerType = f.defaultType
	}
	g, ok := f.gateways[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrUnsupportedProvider, providerType)
	}
	return g, nil
}

// GetGatewayFromString returns a gateway from a string type
func (f *Factory) GetGatewayFromString(providerStr string) (provider.Gateway, error) {
	return f.GetGateway(provider.ProviderType(providerStr))
}

// DefaultType is the provider used when a request names none
func (f *Factory) DefaultType() provider.ProviderType {
	return f.defaultType
}
