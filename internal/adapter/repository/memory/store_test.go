package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponRedeem_SerializesPerCode(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	coupons := store.Coupons()
	require.NoError(t, coupons.Create(ctx, &model.Coupon{Code: "ONLYONE1", FreePeriodMonths: 3, MaxUses: 1, IsActive: true, PlanRestriction: model.PlanRestrictionAll}))

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coupons.Redeem(ctx, "onlyone1", uuid.New(), "plus", func(c *model.Coupon) error {
				return c.CheckRedeemable("plus", time.Now())
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domainErrors.ErrCouponExhausted)
	}
	assert.Equal(t, 1, succeeded)

	c, err := coupons.GetByCode(ctx, "ONLYONE1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsesCount)

	redemptions, err := coupons.ListRedemptions(ctx, "ONLYONE1")
	require.NoError(t, err)
	assert.Len(t, redemptions, 1)
}

func TestCouponRedeem_AlreadyRedeemed(t *testing.T) {
	ctx := context.Background()
	coupons := NewStore().Coupons()
	require.NoError(t, coupons.Create(ctx, &model.Coupon{Code: "TWICE123", FreePeriodMonths: 1, MaxUses: 5, IsActive: true, PlanRestriction: model.PlanRestrictionAll}))

	subID := uuid.New()
	_, err := coupons.Redeem(ctx, "TWICE123", subID, "pro", nil)
	require.NoError(t, err)

	_, err = coupons.Redeem(ctx, "TWICE123", subID, "pro", nil)
	assert.ErrorIs(t, err, domainErrors.ErrAlreadyRedeemed)

	c, _ := coupons.GetByCode(ctx, "TWICE123")
	assert.Equal(t, 1, c.UsesCount)

	_, err = coupons.Redeem(ctx, "MISSING1", subID, "pro", nil)
	assert.ErrorIs(t, err, domainErrors.ErrCouponNotFound)
}

func TestChargeEvents_SettleOnlyPending(t *testing.T) {
	ctx := context.Background()
	events := NewStore().ChargeEvents()
	subID := uuid.New()

	e := &model.ChargeEvent{SubscriptionID: subID, CycleIndex: 1, Amount: decimal.RequireFromString("15.00"), Outcome: model.ChargeOutcomePending}
	require.NoError(t, events.Append(ctx, e))
	require.NoError(t, events.Settle(ctx, e.ID, model.ChargeOutcomeFailed, "pay-1", time.Now()))
	assert.ErrorIs(t, events.Settle(ctx, e.ID, model.ChargeOutcomePaid, "pay-2", time.Now()), domainErrors.ErrConcurrencyConflict)

	require.NoError(t, events.Append(ctx, &model.ChargeEvent{SubscriptionID: subID, CycleIndex: 1, Attempt: 2, Amount: decimal.RequireFromString("15.00"), Outcome: model.ChargeOutcomePaid}))
	latest, err := events.Latest(ctx, subID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Attempt)

	maxCycle, err := events.MaxCycle(ctx, subID)
	require.NoError(t, err)
	assert.Equal(t, 1, maxCycle)
}

func TestWithinTransaction_Nested(t *testing.T) {
	store := NewStore()
	calls := 0
	err := store.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return store.WithinTransaction(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWebhooks_Deduplicate(t *testing.T) {
	ctx := context.Background()
	webhooks := NewStore().Webhooks()

	created, err := webhooks.Save(ctx, &model.WebhookEvent{Provider: "mercadopago", EventID: "42", EventType: "payment.created"})
	require.NoError(t, err)
	assert.True(t, created)

	// Failed events are processed again on redelivery.
	require.NoError(t, webhooks.MarkStatus(ctx, 1, model.WebhookStatusFailed, "redis: connection refused"))
	retry := &model.WebhookEvent{Provider: "mercadopago", EventID: "42", EventType: "payment.created"}
	created, err = webhooks.Save(ctx, retry)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), retry.ID)

	require.NoError(t, webhooks.MarkStatus(ctx, 1, model.WebhookStatusProcessed, ""))
	dup := &model.WebhookEvent{Provider: "mercadopago", EventID: "42", EventType: "payment.created"}
	created, err = webhooks.Save(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), dup.ID)
	assert.Equal(t, model.WebhookStatusProcessed, dup.Status)
}
