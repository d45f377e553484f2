package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/clinicore/billing-engine/internal/domain/provider/providertest"
	"github.com/clinicore/billing-engine/internal/infrastructure/crypto"
	"github.com/clinicore/billing-engine/internal/infrastructure/database"
	"github.com/clinicore/billing-engine/internal/infrastructure/events"
	"github.com/clinicore/billing-engine/internal/infrastructure/lock"
	"github.com/clinicore/billing-engine/internal/infrastructure/mail"
	infraProvider "github.com/clinicore/billing-engine/internal/infrastructure/provider"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// flakyLocker fails the next failures acquisitions
type flakyLocker struct {
	next     lock.Locker
	failures int
}

func (l *flakyLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.failures > 0 {
		l.failures--
		return nil, errors.New("redis: connection refused")
	}
	return l.next.Acquire(ctx, key)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	now      time.Time
	repos    *database.Repositories
	gateway  *providertest.MockGateway
	locker   *flakyLocker
	plans    *usecase.PlanService
	coupons  *usecase.CouponService
	admin    *usecase.CouponAdminService
	subs     *usecase.SubscriptionService
	checkout *usecase.CheckoutService
	webhooks *usecase.WebhookService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		now:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		repos:   database.NewMemoryRepositories(),
		gateway: providertest.NewMockGateway("mercadopago"),
		locker:  &flakyLocker{next: lock.NewLocalLocker()},
	}
	clock := func() time.Time { return f.now }

	factory := infraProvider.NewFactoryWithGateways(provider.ProviderTypeMercadoPago, logger, time.Second, f.gateway)
	encryption, err := crypto.NewAESEncryptionService(testEncryptionKey)
	require.NoError(t, err)

	f.plans = usecase.NewPlanService(f.repos.Plan, logger)
	require.NoError(t, f.plans.Seed(f.ctx))

	f.coupons = usecase.NewCouponService(f.repos.Coupon, f.repos.Plan, logger)
	f.admin = usecase.NewCouponAdminService(f.repos.Coupon, logger)
	f.subs = usecase.NewSubscriptionService(
		f.repos.Transactor, f.repos.Subscription, f.repos.ChargeEvent, f.repos.Plan,
		factory, events.NewNopPublisher(), mail.NewNopNotifier(), f.locker, logger)
	f.subs.SetClock(clock)
	f.checkout = usecase.NewCheckoutService(
		f.repos.Transactor, f.repos.Plan, f.repos.Subscription, f.repos.ChargeEvent,
		f.coupons, factory, encryption, events.NewNopPublisher(), logger)
	f.checkout.SetClock(clock)
	f.webhooks = usecase.NewWebhookService(f.repos.Webhook, f.repos.Subscription, f.subs, factory, logger)
	return f
}

func (f *fixture) createCoupon(code string, freeMonths, maxUses int, restriction model.PlanRestriction) *model.Coupon {
	f.t.Helper()
	c, err := f.admin.Create(f.ctx, usecase.CreateCouponInput{
		Code:             code,
		FreePeriodMonths: freeMonths,
		MaxUses:          maxUses,
		PlanRestriction:  restriction,
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) today() time.Time {
	return model.DateOf(f.now)
}

// subscribe runs a pix checkout for plan with an optional coupon
func (f *fixture) subscribe(planID, couponCode, providerSubID string) *usecase.CheckoutResult {
	f.t.Helper()
	f.gateway.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(req *provider.CreateSubscriptionRequest) bool {
		return req.Plan.ID == planID
	})).Return(&provider.CreateSubscriptionResponse{
		ProviderSubscriptionID: providerSubID,
		Status:                 "pending",
	}, nil).Once()

	res, err := f.checkout.Checkout(f.ctx, usecase.CheckoutRequest{
		QuoteRequest: usecase.QuoteRequest{PlanID: planID, Cadence: model.CadenceMonthly, CouponCode: couponCode},
		Customer:     provider.Customer{ID: "user-1", Email: "dra.ana@clinica.com.br", Name: "Ana"},
		Payment:      usecase.PaymentInput{Kind: provider.PaymentMethodPix},
	})
	require.NoError(f.t, err)
	return res
}

func amountIs(value string) interface{} {
	want := decimal.RequireFromString(value)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

var providerUnavailable = provider.ProviderError{Provider: "mercadopago", Message: "service unavailable", StatusCode: 503}
