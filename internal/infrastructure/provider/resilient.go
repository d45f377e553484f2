package provider

import (
	"context"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ResilientGateway bounds every remote call with a timeout and retries it
// exactly once when the provider is unavailable. Rejections are never retried.
type ResilientGateway struct {
	next    provider.Gateway
	timeout time.Duration
	logger  *zap.Logger
}

func NewResilientGateway(next provider.Gateway, timeout time.Duration, logger *zap.Logger) *ResilientGateway {
	return &ResilientGateway{next: next, timeout: timeout, logger: logger}
}

func (g *ResilientGateway) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := func() error {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(callCtx)
	}

	err := attempt()
	if err == nil || !provider.IsUnavailable(err) || ctx.Err() != nil {
		return err
	}

	g.logger.Warn("Provider unavailable, retrying once",
		zap.String("provider", g.next.GetProviderName()),
		zap.String("operation", op),
		zap.Error(err))
	return attempt()
}

func (g *ResilientGateway) CreateSubscription(ctx context.Context, req *provider.CreateSubscriptionRequest) (*provider.CreateSubscriptionResponse, error) {
	var resp *provider.CreateSubscriptionResponse
	err := g.call(ctx, "create_subscription", func(ctx context.Context) error {
		var err error
		resp, err = g.next.CreateSubscription(ctx, req)
		return err
	})
	return resp, err
}

func (g *ResilientGateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	return g.call(ctx, "cancel_subscription", func(ctx context.Context) error {
		return g.next.CancelSubscription(ctx, providerSubscriptionID)
	})
}

func (g *ResilientGateway) PauseSubscription(ctx context.Context, providerSubscriptionID string) error {
	return g.call(ctx, "pause_subscription", func(ctx context.Context) error {
		return g.next.PauseSubscription(ctx, providerSubscriptionID)
	})
}

func (g *ResilientGateway) ResumeSubscription(ctx context.Context, providerSubscriptionID string) error {
	return g.call(ctx, "resume_subscription", func(ctx context.Context) error {
		return g.next.ResumeSubscription(ctx, providerSubscriptionID)
	})
}

func (g *ResilientGateway) UpdateChargeAmount(ctx context.Context, providerSubscriptionID string, amount decimal.Decimal) error {
	return g.call(ctx, "update_charge_amount", func(ctx context.Context) error {
		return g.next.UpdateChargeAmount(ctx, providerSubscriptionID, amount)
	})
}

func (g *ResilientGateway) TokenizeCard(ctx context.Context, card *provider.CardFields) (*provider.CardToken, error) {
	var token *provider.CardToken
	err := g.call(ctx, "tokenize_card", func(ctx context.Context) error {
		var err error
		token, err = g.next.TokenizeCard(ctx, card)
		return err
	})
	return token, err
}

func (g *ResilientGateway) TranslateWebhook(payload []byte) (*provider.DomainEvent, error) {
	return g.next.TranslateWebhook(payload)
}

func (g *ResilientGateway) VerifySignature(payload []byte, signature string) bool {
	return g.next.VerifySignature(payload, signature)
}

func (g *ResilientGateway) GetProviderName() string {
	return g.next.GetProviderName()
}

// Unwrap returns the decorated gateway
func (g *ResilientGateway) Unwrap() provider.Gateway {
	return g.next
}

var _ provider.Gateway = (*ResilientGateway)(nil)
