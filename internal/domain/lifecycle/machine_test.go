package lifecycle

import (
	"testing"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func subscription(status model.SubscriptionStatus, cycle int) *model.Subscription {
	return &model.Subscription{Status: status, CurrentCycleIndex: cycle}
}

func event(cycle int, amount string, outcome model.ChargeOutcome, paymentID string) *model.ChargeEvent {
	return &model.ChargeEvent{
		CycleIndex:        cycle,
		Amount:            decimal.RequireFromString(amount),
		Outcome:           outcome,
		ProviderPaymentID: paymentID,
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.SubscriptionStatusTrial, model.SubscriptionStatusActive))
	assert.True(t, CanTransition(model.SubscriptionStatusPastDue, model.SubscriptionStatusActive))
	assert.True(t, CanTransition(model.SubscriptionStatusActive, model.SubscriptionStatusActive))
	assert.False(t, CanTransition(model.SubscriptionStatusActive, model.SubscriptionStatusTrial))
	assert.False(t, CanTransition(model.SubscriptionStatusCancelled, model.SubscriptionStatusActive))
	assert.False(t, CanTransition(model.SubscriptionStatusCancelled, model.SubscriptionStatusCancelled))

	assert.Empty(t, ValidTransitionsFrom(model.SubscriptionStatusCancelled))
	assert.Equal(t, []model.SubscriptionStatus{
		model.SubscriptionStatusActive,
		model.SubscriptionStatusCancelled,
		model.SubscriptionStatusPastDue,
	}, ValidTransitionsFrom(model.SubscriptionStatusTrial))
}

func TestApply_FailedThenPaidSameCycle(t *testing.T) {
	sub := subscription(model.SubscriptionStatusActive, 4)

	d := Apply(sub, event(4, "15.00", model.ChargeOutcomePending, ""), PaymentOutcome{CycleIndex: 4, Outcome: model.ChargeOutcomeFailed, ProviderPaymentID: "p1"})
	assert.Equal(t, ActionSettle, d.Action)
	assert.Equal(t, model.SubscriptionStatusPastDue, d.Status)
	assert.False(t, d.Advance)

	sub.Status = d.Status
	d = Apply(sub, event(4, "15.00", model.ChargeOutcomeFailed, "p1"), PaymentOutcome{CycleIndex: 4, Outcome: model.ChargeOutcomePaid, ProviderPaymentID: "p2"})
	assert.Equal(t, ActionAppend, d.Action)
	assert.Equal(t, model.SubscriptionStatusActive, d.Status)
	assert.True(t, d.Advance)
}

func TestApply_IgnoresStaleAndFutureCycles(t *testing.T) {
	sub := subscription(model.SubscriptionStatusActive, 5)

	d := Apply(sub, event(4, "15.00", model.ChargeOutcomePaid, "p1"), PaymentOutcome{CycleIndex: 4, Outcome: model.ChargeOutcomePaid})
	assert.True(t, d.Ignored())
	assert.Equal(t, ReasonStaleCycle, d.Reason)
	assert.Equal(t, model.SubscriptionStatusActive, d.Status)

	d = Apply(sub, nil, PaymentOutcome{CycleIndex: 6, Outcome: model.ChargeOutcomePaid})
	assert.Equal(t, ReasonFutureCycle, d.Reason)
}

func TestApply_DuplicateDeliveries(t *testing.T) {
	sub := subscription(model.SubscriptionStatusPastDue, 2)

	d := Apply(sub, event(2, "15.00", model.ChargeOutcomeFailed, "p1"), PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomeFailed, ProviderPaymentID: "p1"})
	assert.Equal(t, ReasonDuplicateFailure, d.Reason)

	d = Apply(sub, event(2, "15.00", model.ChargeOutcomeFailed, "p1"), PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomeFailed, ProviderPaymentID: "p3"})
	assert.Equal(t, ActionAppend, d.Action)
	assert.Equal(t, model.SubscriptionStatusPastDue, d.Status)

	sub.Status = model.SubscriptionStatusActive
	d = Apply(sub, event(2, "15.00", model.ChargeOutcomePaid, "p2"), PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomePaid, ProviderPaymentID: "p2"})
	assert.Equal(t, ReasonAlreadyPaid, d.Reason)
}

func TestApply_TrialStaysTrialOnFreeCycle(t *testing.T) {
	sub := subscription(model.SubscriptionStatusTrial, 1)

	d := Apply(sub, event(1, "0.00", model.ChargeOutcomePending, ""), PaymentOutcome{CycleIndex: 1, Outcome: model.ChargeOutcomePaid})
	assert.Equal(t, model.SubscriptionStatusTrial, d.Status)
	assert.True(t, d.Advance)

	sub.CurrentCycleIndex = 5
	d = Apply(sub, event(5, "3.75", model.ChargeOutcomePending, ""), PaymentOutcome{CycleIndex: 5, Outcome: model.ChargeOutcomePaid})
	assert.Equal(t, model.SubscriptionStatusActive, d.Status)

	d = Apply(sub, event(5, "3.75", model.ChargeOutcomePending, ""), PaymentOutcome{CycleIndex: 5, Outcome: model.ChargeOutcomeFailed})
	assert.Equal(t, model.SubscriptionStatusPastDue, d.Status)
}

func TestApply_FailureOnFreeCycleIgnored(t *testing.T) {
	sub := subscription(model.SubscriptionStatusTrial, 2)

	d := Apply(sub, event(2, "0.00", model.ChargeOutcomePending, ""), PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomeFailed, ProviderPaymentID: "p1"})
	assert.True(t, d.Ignored())
	assert.Equal(t, ReasonFreeCycle, d.Reason)
	assert.Equal(t, model.SubscriptionStatusTrial, d.Status)
}

func TestApplyPayment(t *testing.T) {
	tests := []struct {
		name   string
		prior  *model.ChargeEvent
		out    PaymentOutcome
		action Action
		reason string
	}{
		{
			name:   "unknown payment",
			out:    PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomePaid, ProviderPaymentID: "p1"},
			action: ActionSettle,
		},
		{
			name:   "paid against previous cycle",
			prior:  event(1, "15.00", model.ChargeOutcomePaid, "p1"),
			out:    PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomePaid, ProviderPaymentID: "p1"},
			reason: ReasonDuplicatePayment,
		},
		{
			name:   "paid payment reported failed",
			prior:  event(1, "15.00", model.ChargeOutcomePaid, "p1"),
			out:    PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomeFailed, ProviderPaymentID: "p1"},
			reason: ReasonDuplicatePayment,
		},
		{
			name:   "same cycle falls through",
			prior:  event(2, "15.00", model.ChargeOutcomeFailed, "p1"),
			out:    PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomePaid, ProviderPaymentID: "p1"},
			action: ActionSettle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := subscription(model.SubscriptionStatusActive, 2)
			d := ApplyPayment(sub, event(2, "15.00", model.ChargeOutcomePending, ""), tt.prior, tt.out)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}

	d := ApplyPayment(subscription(model.SubscriptionStatusCancelled, 2), nil, event(1, "15.00", model.ChargeOutcomePaid, "p1"),
		PaymentOutcome{CycleIndex: 2, Outcome: model.ChargeOutcomePaid, ProviderPaymentID: "p1"})
	assert.Equal(t, ReasonCancelled, d.Reason)
}

func TestApply_CancelledAndNonTerminal(t *testing.T) {
	d := Apply(subscription(model.SubscriptionStatusCancelled, 3), nil, PaymentOutcome{CycleIndex: 3, Outcome: model.ChargeOutcomePaid})
	assert.Equal(t, ReasonCancelled, d.Reason)
	assert.Equal(t, model.SubscriptionStatusCancelled, d.Status)

	d = Apply(subscription(model.SubscriptionStatusActive, 3), nil, PaymentOutcome{CycleIndex: 3, Outcome: model.ChargeOutcomePending})
	assert.Equal(t, ReasonNonTerminal, d.Reason)
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(subscription(model.SubscriptionStatusTrial, 1)))
	assert.True(t, CanCancel(subscription(model.SubscriptionStatusPastDue, 1)))
	assert.False(t, CanCancel(subscription(model.SubscriptionStatusCancelled, 1)))
}
