package usecase_test

import (
	"testing"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/lifecycle"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func paid(cycle int, paymentID string) lifecycle.PaymentOutcome {
	return lifecycle.PaymentOutcome{CycleIndex: cycle, Outcome: model.ChargeOutcomePaid, ProviderPaymentID: paymentID}
}

func failed(cycle int, paymentID string) lifecycle.PaymentOutcome {
	return lifecycle.PaymentOutcome{CycleIndex: cycle, Outcome: model.ChargeOutcomeFailed, ProviderPaymentID: paymentID}
}

func TestSubscriptionService_CouponLifecycle(t *testing.T) {
	f := newFixture(t)
	f.createCoupon("WELCOME3", 3, 100, model.PlanRestrictionAll)
	sub := f.subscribe("plus", "WELCOME3", "mp-1").Subscription

	// Nothing is due before the start date passes.
	advanced, err := f.subs.SettleDue(f.ctx, f.now.AddDate(0, 0, -1), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, advanced)

	// Free months and the 100% discount month settle on their own.
	f.now = time.Date(2024, 4, 15, 8, 0, 0, 0, time.UTC)
	advanced, err = f.subs.SettleDue(f.ctx, f.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)

	got, err := f.subs.Get(f.ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusTrial, got.Status)
	assert.Equal(t, 5, got.CurrentCycleIndex)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), got.NextChargeDate)

	// First real charge: trial becomes active and the provider learns the next amount.
	f.now = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	f.gateway.On("UpdateChargeAmount", mock.Anything, "mp-1", amountIs("7.50")).Return(nil).Once()

	decision, err := f.subs.RecordPaymentOutcome(f.ctx, sub.ID, paid(5, "pay-5"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ActionSettle, decision.Action)

	got, err = f.subs.Get(f.ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, got.Status)
	assert.Equal(t, 6, got.CurrentCycleIndex)
	f.gateway.AssertExpectations(t)

	// Replaying the same outcome is ignored.
	decision, err = f.subs.RecordPaymentOutcome(f.ctx, sub.ID, paid(5, "pay-5"))
	require.NoError(t, err)
	assert.True(t, decision.Ignored())
	assert.Equal(t, lifecycle.ReasonStaleCycle, decision.Reason)

	evts, err := f.subs.ListEvents(f.ctx, sub.ID)
	require.NoError(t, err)
	outcomes := make(map[int]model.ChargeOutcome)
	for _, e := range evts {
		outcomes[e.CycleIndex] = e.Outcome
	}
	for cycle := 1; cycle <= 5; cycle++ {
		assert.Equal(t, model.ChargeOutcomePaid, outcomes[cycle], "cycle %d", cycle)
	}
	assert.Equal(t, model.ChargeOutcomePending, outcomes[6])
}

func TestSubscriptionService_FailureAndRecovery(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe("pro", "", "mp-2").Subscription
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)

	decision, err := f.subs.RecordPaymentOutcome(f.ctx, sub.ID, failed(1, "pay-a"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ActionSettle, decision.Action)
	assert.Equal(t, model.SubscriptionStatusPastDue, decision.Status)

	// The same failure delivered twice is a duplicate.
	decision, err = f.subs.RecordPaymentOutcome(f.ctx, sub.ID, failed(1, "pay-a"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ReasonDuplicateFailure, decision.Reason)

	// A new failed attempt is appended.
	decision, err = f.subs.RecordPaymentOutcome(f.ctx, sub.ID, failed(1, "pay-b"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ActionAppend, decision.Action)

	// The retry succeeds. No amount sync: every cycle costs the same.
	decision, err = f.subs.RecordPaymentOutcome(f.ctx, sub.ID, paid(1, "pay-c"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ActionAppend, decision.Action)
	assert.Equal(t, model.SubscriptionStatusActive, decision.Status)
	f.gateway.AssertNotCalled(t, "UpdateChargeAmount", mock.Anything, mock.Anything, mock.Anything)

	evts, err := f.subs.ListEvents(f.ctx, sub.ID)
	require.NoError(t, err)
	var cycleOne []*model.ChargeEvent
	for _, e := range evts {
		if e.CycleIndex == 1 {
			cycleOne = append(cycleOne, e)
		}
	}
	require.Len(t, cycleOne, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{cycleOne[0].Attempt, cycleOne[1].Attempt, cycleOne[2].Attempt})
	assert.Equal(t, model.ChargeOutcomePaid, cycleOne[2].Outcome)
	assert.Equal(t, "35.00", cycleOne[2].Amount.StringFixed(2))
}

func TestSubscriptionService_ExtendsScheduleAndIgnoresFutureCycles(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe("plus", "", "mp-3").Subscription

	decision, err := f.subs.RecordPaymentOutcome(f.ctx, sub.ID, paid(3, "pay-3"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ReasonFutureCycle, decision.Reason)

	_, err = f.subs.RecordPaymentOutcome(f.ctx, sub.ID, paid(0, "pay-1"))
	require.NoError(t, err)
	_, err = f.subs.RecordPaymentOutcome(f.ctx, sub.ID, paid(2, "pay-2"))
	require.NoError(t, err)

	got, err := f.subs.Get(f.ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentCycleIndex)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got.NextChargeDate)

	evts, err := f.subs.ListEvents(f.ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, 3, evts[2].CycleIndex)
	assert.Equal(t, model.ChargeOutcomePending, evts[2].Outcome)
	assert.Equal(t, "15.00", evts[2].Amount.StringFixed(2))
}

func TestSubscriptionService_Cancel(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe("plus", "", "mp-4").Subscription
	f.gateway.On("CancelSubscription", mock.Anything, "mp-4").Return(nil).Once()

	cancelled, err := f.subs.Cancel(f.ctx, sub.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusCancelled, cancelled.Status)
	assert.Equal(t, "customer request", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)

	// Cancel is idempotent and does not call the provider again.
	again, err := f.subs.Cancel(f.ctx, sub.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, "customer request", again.CancelReason)
	f.gateway.AssertNumberOfCalls(t, "CancelSubscription", 1)

	// Cancelled is terminal.
	decision, err := f.subs.RecordPaymentOutcome(f.ctx, sub.ID, paid(1, "late"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ReasonCancelled, decision.Reason)

	_, err = f.subs.Pause(f.ctx, sub.ID)
	assert.ErrorIs(t, err, domainErrors.ErrSubscriptionCancelled)
}

func TestSubscriptionService_CancelProviderUnavailable(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe("plus", "", "mp-5").Subscription
	f.gateway.On("CancelSubscription", mock.Anything, "mp-5").
		Return(&providerUnavailable).Twice()

	_, err := f.subs.Cancel(f.ctx, sub.ID, "customer request")
	assert.ErrorIs(t, err, domainErrors.ErrProviderUnavailable)
	f.gateway.AssertNumberOfCalls(t, "CancelSubscription", 2)

	got, err := f.subs.Get(f.ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, got.Status)
}

func TestSubscriptionService_PauseResume(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe("plus", "", "mp-6").Subscription
	f.gateway.On("PauseSubscription", mock.Anything, "mp-6").Return(nil).Once()
	f.gateway.On("ResumeSubscription", mock.Anything, "mp-6").Return(nil).Once()

	paused, err := f.subs.Pause(f.ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, paused.PausedAt)
	assert.Equal(t, model.SubscriptionStatusActive, paused.Status)

	_, err = f.subs.Pause(f.ctx, sub.ID)
	require.NoError(t, err)

	resumed, err := f.subs.Resume(f.ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, resumed.PausedAt)
	f.gateway.AssertExpectations(t)
}

func TestSubscriptionService_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.subs.Get(f.ctx, uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrSubscriptionNotFound)

	_, err = f.subs.RecordPaymentOutcome(f.ctx, uuid.New(), paid(1, "x"))
	assert.ErrorIs(t, err, domainErrors.ErrSubscriptionNotFound)

	_, err = f.subs.ListEvents(f.ctx, uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrSubscriptionNotFound)
}
