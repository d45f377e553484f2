package repository

import (
	"context"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *model.Subscription) error
	// GetByID returns nil, nil when the subscription does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	// GetForUpdate locks the row until the surrounding transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, provider, providerSubscriptionID string) (*model.Subscription, error)
	Update(ctx context.Context, subscription *model.Subscription) error
	ListByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error)
	// ListDue returns unpaused trial subscriptions whose next charge date is
	// on or before asOf. Only those can have free cycles left to settle.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error)
}
