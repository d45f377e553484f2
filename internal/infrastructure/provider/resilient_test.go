package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/clinicore/billing-engine/internal/domain/provider/providertest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResilientGateway_RetriesUnavailableOnce(t *testing.T) {
	inner := providertest.NewMockGateway("mercadopago")
	unavailable := &provider.ProviderError{Provider: "mercadopago", Message: "bad gateway", StatusCode: 502}
	inner.On("CancelSubscription", mock.Anything, "sub-1").Return(unavailable).Once()
	inner.On("CancelSubscription", mock.Anything, "sub-1").Return(nil).Once()

	g := NewResilientGateway(inner, time.Second, zap.NewNop())

	require.NoError(t, g.CancelSubscription(context.Background(), "sub-1"))
	inner.AssertNumberOfCalls(t, "CancelSubscription", 2)
}

func TestResilientGateway_GivesUpAfterSecondFailure(t *testing.T) {
	inner := providertest.NewMockGateway("pagseguro")
	unavailable := &provider.ProviderError{Provider: "pagseguro", Message: "timeout", Temporary: true}
	inner.On("PauseSubscription", mock.Anything, "sub-1").Return(unavailable)

	g := NewResilientGateway(inner, time.Second, zap.NewNop())

	err := g.PauseSubscription(context.Background(), "sub-1")
	assert.ErrorIs(t, err, domainErrors.ErrProviderUnavailable)
	inner.AssertNumberOfCalls(t, "PauseSubscription", 2)
}

func TestResilientGateway_DoesNotRetryRejection(t *testing.T) {
	inner := providertest.NewMockGateway("mercadopago")
	rejected := &provider.ProviderError{Provider: "mercadopago", Code: "cc_rejected", Message: "rejected", StatusCode: 400}
	inner.On("CreateSubscription", mock.Anything, mock.Anything).Return(nil, rejected)

	g := NewResilientGateway(inner, time.Second, zap.NewNop())

	resp, err := g.CreateSubscription(context.Background(), &provider.CreateSubscriptionRequest{})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)
	inner.AssertNumberOfCalls(t, "CreateSubscription", 1)
}

func TestResilientGateway_AppliesTimeout(t *testing.T) {
	inner := providertest.NewMockGateway("mercadopago")
	inner.On("ResumeSubscription", mock.Anything, "sub-1").Return(nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
	})

	g := NewResilientGateway(inner, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, g.ResumeSubscription(context.Background(), "sub-1"))
}

func TestResilientGateway_NoRetryWhenCallerCancelled(t *testing.T) {
	inner := providertest.NewMockGateway("mercadopago")
	inner.On("UpdateChargeAmount", mock.Anything, "sub-1", mock.Anything).
		Return(&provider.ProviderError{Provider: "mercadopago", Message: "network", Temporary: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewResilientGateway(inner, time.Second, zap.NewNop())
	err := g.UpdateChargeAmount(ctx, "sub-1", decimal.Zero)
	assert.Error(t, err)
	inner.AssertNumberOfCalls(t, "UpdateChargeAmount", 1)
}

func TestFactory_GetGateway(t *testing.T) {
	mp := providertest.NewMockGateway("mercadopago")
	ps := providertest.NewMockGateway("pagseguro")
	f := NewFactoryWithGateways(provider.ProviderTypeMercadoPago, zap.NewNop(), time.Second, mp, ps)

	g, err := f.GetGateway("")
	require.NoError(t, err)
	assert.Equal(t, "mercadopago", g.GetProviderName())

	g, err = f.GetGatewayFromString("pagseguro")
	require.NoError(t, err)
	assert.Equal(t, "pagseguro", g.GetProviderName())

	_, err = f.GetGatewayFromString("stripe")
	assert.True(t, errors.Is(err, domainErrors.ErrUnsupportedProvider))
}
