package memory

import (
	"context"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/google/uuid"
)

type chargeEventRepository struct {
	s *Store
}

func (r *chargeEventRepository) Append(_ context.Context, events ...*model.ChargeEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.Attempt == 0 {
			e.Attempt = 1
		}
		e.CreatedAt = now
		c := *e
		r.s.events = append(r.s.events, &c)
	}
	return nil
}

func (r *chargeEventRepository) Latest(_ context.Context, subscriptionID uuid.UUID, cycleIndex int) (*model.ChargeEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var latest *model.ChargeEvent
	for _, e := range r.s.events {
		if e.SubscriptionID != subscriptionID || e.CycleIndex != cycleIndex {
			continue
		}
		if latest == nil || e.Attempt > latest.Attempt {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (r *chargeEventRepository) Settle(_ context.Context, id uuid.UUID, outcome model.ChargeOutcome, providerPaymentID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.events {
		if e.ID != id {
			continue
		}
		if e.Outcome != model.ChargeOutcomePending {
			return domainErrors.ErrConcurrencyConflict
		}
		e.Outcome = outcome
		e.ProviderPaymentID = providerPaymentID
		e.RecordedAt = &at
		return nil
	}
	return domainErrors.ErrConcurrencyConflict
}

func (r *chargeEventRepository) FindByProviderPaymentID(_ context.Context, subscriptionID uuid.UUID, providerPaymentID string) (*model.ChargeEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *model.ChargeEvent
	for _, e := range r.s.events {
		if e.SubscriptionID != subscriptionID || e.ProviderPaymentID != providerPaymentID {
			continue
		}
		if found == nil || e.CycleIndex > found.CycleIndex ||
			(e.CycleIndex == found.CycleIndex && e.Attempt > found.Attempt) {
			found = e
		}
	}
	if found == nil {
		return nil, nil
	}
	c := *found
	return &c, nil
}

// ListBySubscription returns events ordered by cycle then attempt
func (r *chargeEventRepository) ListBySubscription(_ context.Context, subscriptionID uuid.UUID) ([]*model.ChargeEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.ChargeEvent, 0)
	for _, e := range r.s.events {
		if e.SubscriptionID == subscriptionID {
			c := *e
			out = append(out, &c)
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *chargeEventRepository) MaxCycle(_ context.Context, subscriptionID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	maxCycle := 0
	for _, e := range r.s.events {
		if e.SubscriptionID == subscriptionID && e.CycleIndex > maxCycle {
			maxCycle = e.CycleIndex
		}
	}
	return maxCycle, nil
}
