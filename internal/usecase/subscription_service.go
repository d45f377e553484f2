package usecase

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/lifecycle"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/clinicore/billing-engine/internal/domain/schedule"
	"github.com/clinicore/billing-engine/internal/infrastructure/events"
	"github.com/clinicore/billing-engine/internal/infrastructure/lock"
	"github.com/clinicore/billing-engine/internal/infrastructure/mail"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubscriptionService owns every status change of a subscription. Work on
// one subscription is serialized through the locker and runs in a single
// store transaction.
type SubscriptionService struct {
	transactor repository.Transactor
	subRepo    repository.SubscriptionRepository
	chargeRepo repository.ChargeEventRepository
	planRepo   repository.PlanRepository
	gateways   GatewayResolver
	publisher  events.Publisher
	notifier   mail.Notifier
	locker     lock.Locker
	logger     *zap.Logger
	now        Clock
}

// NewSubscriptionService creates a new subscription service instance
func NewSubscriptionService(
	transactor repository.Transactor,
	subRepo repository.SubscriptionRepository,
	chargeRepo repository.ChargeEventRepository,
	planRepo repository.PlanRepository,
	gateways GatewayResolver,
	publisher events.Publisher,
	notifier mail.Notifier,
	locker lock.Locker,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		transactor: transactor,
		subRepo:    subRepo,
		chargeRepo: chargeRepo,
		planRepo:   planRepo,
		gateways:   gateways,
		publisher:  publisher,
		notifier:   notifier,
		locker:     locker,
		logger:     logger,
		now:        systemClock,
	}
}

// SetClock replaces the time source
func (s *SubscriptionService) SetClock(clock Clock) {
	s.now = clock
}

type statusChange struct {
	from   model.SubscriptionStatus
	to     model.SubscriptionStatus
	reason string
}

// amountChange is a charge amount the provider must be told about
type amountChange struct {
	cycle  int
	amount decimal.Decimal
}

// Get returns ErrSubscriptionNotFound for unknown ids
func (s *SubscriptionService) Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil {
		return nil, domainErrors.ErrSubscriptionNotFound
	}
	return sub, nil
}

// ListByCustomer returns the subscriptions of customerID, newest first
func (s *SubscriptionService) ListByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error) {
	subs, err := s.subRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// ListEvents returns the charge log of a subscription ordered by cycle and
// attempt. It is read-only.
func (s *SubscriptionService) ListEvents(ctx context.Context, id uuid.UUID) ([]*model.ChargeEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	evts, err := s.chargeRepo.ListBySubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list charge events: %w", err)
	}
	return evts, nil
}

// RecordPaymentOutcome applies a provider-reported outcome. Due free cycles
// are settled first. A zero CycleIndex means the current cycle. Outcomes for
// cancelled subscriptions, for stale, future or already settled cycles and
// for provider payments already recorded against another cycle are ignored
// and logged, so replaying an outcome is harmless.
func (s *SubscriptionService) RecordPaymentOutcome(ctx context.Context, id uuid.UUID, outcome lifecycle.PaymentOutcome) (lifecycle.Decision, error) {
	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		return lifecycle.Decision{}, err
	}
	defer release()

	if outcome.At.IsZero() {
		outcome.At = s.now()
	}

	var (
		sub      *model.Subscription
		decision lifecycle.Decision
		changes  []statusChange
		update   *amountChange
	)
	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.loadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sched, err := s.scheduleFor(ctx, sub)
		if err != nil {
			return err
		}
		startIndex, startStatus := sub.CurrentCycleIndex, sub.Status

		settled, err := s.settleFreeCycles(ctx, sub, sched, model.DateOf(outcome.At))
		if err != nil {
			return err
		}
		changes = append(changes, settled...)

		if outcome.CycleIndex == 0 {
			outcome.CycleIndex = sub.CurrentCycleIndex
		}
		from := sub.Status
		decision, update, err = s.apply(ctx, sub, sched, outcome)
		if err != nil {
			return err
		}
		if decision.Ignored() {
			s.logger.Info("Payment outcome ignored",
				zap.String("subscription_id", id.String()),
				zap.Int("cycle_index", outcome.CycleIndex),
				zap.Int("current_cycle_index", sub.CurrentCycleIndex),
				zap.String("outcome", string(outcome.Outcome)),
				zap.String("provider_payment_id", outcome.ProviderPaymentID),
				zap.String("reason", decision.Reason))
		} else if from != sub.Status {
			changes = append(changes, statusChange{from: from, to: sub.Status, reason: string(outcome.Outcome)})
		}

		if decision.Ignored() && sub.CurrentCycleIndex == startIndex && sub.Status == startStatus {
			return nil
		}
		return s.subRepo.Update(ctx, sub)
	})
	if err != nil {
		return lifecycle.Decision{}, err
	}

	if !decision.Ignored() {
		s.logger.Info("Payment outcome recorded",
			zap.String("subscription_id", id.String()),
			zap.Int("cycle_index", outcome.CycleIndex),
			zap.String("outcome", string(outcome.Outcome)),
			zap.String("action", decision.Action.String()),
			zap.String("status", string(sub.Status)))
	}
	s.afterCommit(ctx, sub, changes)
	if update != nil {
		s.syncChargeAmount(ctx, sub, *update)
	}
	return decision, nil
}

// SettleFreeCycles marks every due zero-amount cycle as paid. The status
// stays trial while only zero-amount cycles have been settled.
func (s *SubscriptionService) SettleFreeCycles(ctx context.Context, id uuid.UUID, asOf time.Time) (*model.Subscription, error) {
	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		sub     *model.Subscription
		changes []statusChange
		settled bool
	)
	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.loadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sched, err := s.scheduleFor(ctx, sub)
		if err != nil {
			return err
		}

		before := sub.CurrentCycleIndex
		changes, err = s.settleFreeCycles(ctx, sub, sched, model.DateOf(asOf))
		if err != nil {
			return err
		}
		if sub.CurrentCycleIndex == before {
			return nil
		}
		settled = true
		return s.subRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	if settled {
		s.logger.Info("Free cycles settled",
			zap.String("subscription_id", id.String()),
			zap.Int("current_cycle_index", sub.CurrentCycleIndex),
			zap.String("status", string(sub.Status)))
	}
	s.afterCommit(ctx, sub, changes)
	return sub, nil
}

// SettleDue settles free cycles of up to limit subscriptions due on or
// before asOf and returns how many advanced. Failures are logged and skipped.
func (s *SubscriptionService) SettleDue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	subs, err := s.subRepo.ListDue(ctx, model.DateOf(asOf), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	advanced := 0
	for _, due := range subs {
		if ctx.Err() != nil {
			return advanced, ctx.Err()
		}
		sub, err := s.SettleFreeCycles(ctx, due.ID, asOf)
		if err != nil {
			s.logger.Error("Failed to settle free cycles",
				zap.String("subscription_id", due.ID.String()),
				zap.Error(err))
			continue
		}
		if sub.CurrentCycleIndex != due.CurrentCycleIndex {
			advanced++
		}
	}
	return advanced, nil
}

// Cancel cancels the subscription with its provider and then locally.
// Cancelling a cancelled subscription returns it unchanged.
func (s *SubscriptionService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Subscription, error) {
	return s.cancel(ctx, id, reason, true)
}

// MarkCancelled records a cancellation that already happened at the provider
func (s *SubscriptionService) MarkCancelled(ctx context.Context, id uuid.UUID, reason string) (*model.Subscription, error) {
	return s.cancel(ctx, id, reason, false)
}

func (s *SubscriptionService) cancel(ctx context.Context, id uuid.UUID, reason string, callProvider bool) (*model.Subscription, error) {
	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer release()

	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanCancel(sub) {
		return sub, nil
	}

	if callProvider {
		gateway, err := s.gateways.GetGatewayFromString(sub.Provider)
		if err != nil {
			return nil, err
		}
		if err := gateway.CancelSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
			return nil, fmt.Errorf("failed to cancel with %s: %w", sub.Provider, err)
		}
	}

	var changes []statusChange
	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.loadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !lifecycle.CanCancel(sub) {
			return nil
		}

		now := s.now()
		changes = append(changes, statusChange{from: sub.Status, to: model.SubscriptionStatusCancelled, reason: reason})
		sub.Status = model.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		sub.CancelReason = reason
		return s.subRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subscription cancelled",
		zap.String("subscription_id", id.String()),
		zap.String("reason", reason),
		zap.Bool("provider_initiated", !callProvider))
	s.afterCommit(ctx, sub, changes)
	return sub, nil
}

// Pause suspends charging at the provider. The status is kept.
func (s *SubscriptionService) Pause(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	return s.setPaused(ctx, id, true)
}

// Resume restarts charging at the provider
func (s *SubscriptionService) Resume(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	return s.setPaused(ctx, id, false)
}

func (s *SubscriptionService) setPaused(ctx context.Context, id uuid.UUID, paused bool) (*model.Subscription, error) {
	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer release()

	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, domainErrors.ErrSubscriptionCancelled
	}
	if (sub.PausedAt != nil) == paused {
		return sub, nil
	}

	gateway, err := s.gateways.GetGatewayFromString(sub.Provider)
	if err != nil {
		return nil, err
	}
	if paused {
		err = gateway.PauseSubscription(ctx, sub.ProviderSubscriptionID)
	} else {
		err = gateway.ResumeSubscription(ctx, sub.ProviderSubscriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update %s subscription: %w", sub.Provider, err)
	}

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.loadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if paused {
			now := s.now()
			sub.PausedAt = &now
		} else {
			sub.PausedAt = nil
		}
		return s.subRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subscription pause state changed",
		zap.String("subscription_id", id.String()),
		zap.Bool("paused", paused))
	return sub, nil
}

// apply records outcome through the lifecycle transition function and
// mutates sub accordingly. The returned amountChange is set when the next
// cycle costs something different from the one just paid.
func (s *SubscriptionService) apply(ctx context.Context, sub *model.Subscription, sched *schedule.Schedule, outcome lifecycle.PaymentOutcome) (lifecycle.Decision, *amountChange, error) {
	latest, err := s.chargeRepo.Latest(ctx, sub.ID, outcome.CycleIndex)
	if err != nil {
		return lifecycle.Decision{}, nil, fmt.Errorf("failed to get latest charge event: %w", err)
	}

	var prior *model.ChargeEvent
	if outcome.ProviderPaymentID != "" {
		prior, err = s.chargeRepo.FindByProviderPaymentID(ctx, sub.ID, outcome.ProviderPaymentID)
		if err != nil {
			return lifecycle.Decision{}, nil, fmt.Errorf("failed to look up provider payment: %w", err)
		}
	}

	decision := lifecycle.ApplyPayment(sub, latest, prior, outcome)
	if decision.Ignored() {
		return decision, nil, nil
	}

	paidAmount := sched.Cycle(outcome.CycleIndex).Amount
	switch decision.Action {
	case lifecycle.ActionSettle:
		if err := s.chargeRepo.Settle(ctx, latest.ID, outcome.Outcome, outcome.ProviderPaymentID, outcome.At); err != nil {
			return lifecycle.Decision{}, nil, fmt.Errorf("failed to settle charge event: %w", err)
		}
		paidAmount = latest.Amount
	case lifecycle.ActionAppend:
		evt := schedule.NewChargeEvent(sub.ID, sched.Cycle(outcome.CycleIndex))
		if latest != nil {
			evt.Attempt = latest.Attempt + 1
			evt.Amount = latest.Amount
			evt.DueDate = latest.DueDate
			paidAmount = latest.Amount
		}
		evt.Outcome = outcome.Outcome
		evt.ProviderPaymentID = outcome.ProviderPaymentID
		at := outcome.At
		evt.RecordedAt = &at
		if err := s.chargeRepo.Append(ctx, &evt); err != nil {
			return lifecycle.Decision{}, nil, fmt.Errorf("failed to append charge event: %w", err)
		}
	}

	sub.Status = decision.Status
	if !decision.Advance {
		return decision, nil, nil
	}

	next, err := s.advance(ctx, sub, sched)
	if err != nil {
		return lifecycle.Decision{}, nil, err
	}
	if paidAmount.IsPositive() && !next.Amount.Equal(paidAmount) {
		return decision, &amountChange{cycle: next.CycleIndex, amount: next.Amount}, nil
	}
	return decision, nil, nil
}

// advance moves sub to its next cycle and makes sure a pending event exists
// for it. Cancelled subscriptions never reach here.
func (s *SubscriptionService) advance(ctx context.Context, sub *model.Subscription, sched *schedule.Schedule) (schedule.Entry, error) {
	next := sched.Cycle(sub.CurrentCycleIndex + 1)
	sub.CurrentCycleIndex = next.CycleIndex
	sub.NextChargeDate = next.DueDate

	maxCycle, err := s.chargeRepo.MaxCycle(ctx, sub.ID)
	if err != nil {
		return schedule.Entry{}, fmt.Errorf("failed to get last scheduled cycle: %w", err)
	}
	if maxCycle < next.CycleIndex {
		evt := schedule.NewChargeEvent(sub.ID, next)
		if err := s.chargeRepo.Append(ctx, &evt); err != nil {
			return schedule.Entry{}, fmt.Errorf("failed to extend schedule: %w", err)
		}
	}
	return next, nil
}

// settleFreeCycles pays every zero-amount cycle due on or before today.
// Paused subscriptions are left alone.
func (s *SubscriptionService) settleFreeCycles(ctx context.Context, sub *model.Subscription, sched *schedule.Schedule, today time.Time) ([]statusChange, error) {
	var changes []statusChange
	for !sub.Status.IsTerminal() && sub.PausedAt == nil && !sub.NextChargeDate.After(today) {
		cycle := sub.CurrentCycleIndex
		latest, err := s.chargeRepo.Latest(ctx, sub.ID, cycle)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest charge event: %w", err)
		}
		amount := sched.Cycle(cycle).Amount
		if latest != nil {
			amount = latest.Amount
		}
		if !amount.IsZero() {
			break
		}

		from := sub.Status
		decision, _, err := s.apply(ctx, sub, sched, lifecycle.PaymentOutcome{
			CycleIndex: cycle,
			Outcome:    model.ChargeOutcomePaid,
			At:         s.now(),
		})
		if err != nil {
			return nil, err
		}
		if decision.Ignored() {
			break
		}
		if from != sub.Status {
			changes = append(changes, statusChange{from: from, to: sub.Status, reason: "free cycle settled"})
		}
	}
	return changes, nil
}

func (s *SubscriptionService) loadForUpdate(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	sub, err := s.subRepo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock subscription: %w", err)
	}
	if sub == nil {
		return nil, domainErrors.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *SubscriptionService) scheduleFor(ctx context.Context, sub *model.Subscription) (*schedule.Schedule, error) {
	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrPlanNotFound, sub.PlanID)
	}
	return schedule.Compute(plan, sub.BillingCadence, sub.CouponResult(), sub.StartDate)
}

// afterCommit publishes status changes and notifies the customer. Failures
// are logged; the state change is already durable.
func (s *SubscriptionService) afterCommit(ctx context.Context, sub *model.Subscription, changes []statusChange) {
	for _, ch := range changes {
		evt := events.NewStatusChanged(sub, ch.from, ch.reason, s.now())
		evt.To = ch.to
		if err := s.publisher.PublishStatusChanged(ctx, evt); err != nil {
			s.logger.Warn("Failed to publish status change",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err))
		}
		if err := s.notifier.NotifyStatusChange(ctx, sub, ch.to); err != nil {
			s.logger.Warn("Failed to notify customer",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("status", string(ch.to)),
				zap.Error(err))
		}
	}
}

func (s *SubscriptionService) syncChargeAmount(ctx context.Context, sub *model.Subscription, change amountChange) {
	gateway, err := s.gateways.GetGatewayFromString(sub.Provider)
	if err == nil {
		err = gateway.UpdateChargeAmount(ctx, sub.ProviderSubscriptionID, change.amount)
	}
	if err != nil {
		s.logger.Warn("Failed to sync next charge amount",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int("cycle_index", change.cycle),
			zap.String("amount", change.amount.StringFixed(2)),
			zap.Error(err))
		return
	}
	s.logger.Info("Next charge amount synced",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("cycle_index", change.cycle),
		zap.String("amount", change.amount.StringFixed(2)))
}
