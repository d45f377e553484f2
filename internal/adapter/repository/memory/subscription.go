package memory

import (
	"context"
	"sort"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/google/uuid"
)

type subscriptionRepository struct {
	s *Store
}

func cloneSubscription(sub *model.Subscription) *model.Subscription {
	c := *sub
	if sub.ProviderData != nil {
		c.ProviderData = make(map[string]interface{}, len(sub.ProviderData))
		for k, v := range sub.ProviderData {
			c.ProviderData[k] = v
		}
	}
	return &c
}

func (r *subscriptionRepository) Create(_ context.Context, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	for _, existing := range r.s.subscriptions {
		if existing.Provider == sub.Provider && existing.ProviderSubscriptionID == sub.ProviderSubscriptionID {
			return domainErrors.ErrConcurrencyConflict
		}
	}
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	r.s.subscriptions[sub.ID] = cloneSubscription(sub)
	return nil
}

func (r *subscriptionRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil, nil
	}
	return cloneSubscription(sub), nil
}

// GetForUpdate relies on the store-wide transaction lock
func (r *subscriptionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	return r.GetByID(ctx, id)
}

func (r *subscriptionRepository) GetByProviderSubscriptionID(_ context.Context, provider, providerSubscriptionID string) (*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, sub := range r.s.subscriptions {
		if sub.Provider == provider && sub.ProviderSubscriptionID == providerSubscriptionID {
			return cloneSubscription(sub), nil
		}
	}
	return nil, nil
}

func (r *subscriptionRepository) Update(_ context.Context, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.subscriptions[sub.ID]; !ok {
		return domainErrors.ErrSubscriptionNotFound
	}
	sub.UpdatedAt = time.Now()
	r.s.subscriptions[sub.ID] = cloneSubscription(sub)
	return nil
}

func (r *subscriptionRepository) ListByCustomer(_ context.Context, customerID string) ([]*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Subscription, 0)
	for _, sub := range r.s.subscriptions {
		if sub.CustomerID == customerID {
			out = append(out, cloneSubscription(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *subscriptionRepository) ListDue(_ context.Context, asOf time.Time, limit int) ([]*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Subscription, 0)
	for _, sub := range r.s.subscriptions {
		if sub.Status != model.SubscriptionStatusTrial || sub.PausedAt != nil || sub.NextChargeDate.After(asOf) {
			continue
		}
		out = append(out, cloneSubscription(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextChargeDate.Before(out[j].NextChargeDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
