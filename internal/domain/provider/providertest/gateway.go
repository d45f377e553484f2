// Package providertest provides a testify mock of provider.Gateway.
package providertest

import (
	"context"

	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a mock implementation of provider.Gateway
type MockGateway struct {
	mock.Mock
	Name string
}

// NewMockGateway returns a mock reporting name as its provider
func NewMockGateway(name string) *MockGateway {
	return &MockGateway{Name: name}
}

func (m *MockGateway) CreateSubscription(ctx context.Context, req *provider.CreateSubscriptionRequest) (*provider.CreateSubscriptionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CreateSubscriptionResponse), args.Error(1)
}

func (m *MockGateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	return m.Called(ctx, providerSubscriptionID).Error(0)
}

func (m *MockGateway) PauseSubscription(ctx context.Context, providerSubscriptionID string) error {
	return m.Called(ctx, providerSubscriptionID).Error(0)
}

func (m *MockGateway) ResumeSubscription(ctx context.Context, providerSubscriptionID string) error {
	return m.Called(ctx, providerSubscriptionID).Error(0)
}

func (m *MockGateway) UpdateChargeAmount(ctx context.Context, providerSubscriptionID string, amount decimal.Decimal) error {
	return m.Called(ctx, providerSubscriptionID, amount).Error(0)
}

func (m *MockGateway) TokenizeCard(ctx context.Context, card *provider.CardFields) (*provider.CardToken, error) {
	args := m.Called(ctx, card)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CardToken), args.Error(1)
}

func (m *MockGateway) TranslateWebhook(payload []byte) (*provider.DomainEvent, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.DomainEvent), args.Error(1)
}

func (m *MockGateway) VerifySignature(payload []byte, signature string) bool {
	return m.Called(payload, signature).Bool(0)
}

func (m *MockGateway) GetProviderName() string {
	return m.Name
}

var _ provider.Gateway = (*MockGateway)(nil)
