package repository

import (
	"context"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/google/uuid"
)

// ChargeEventRepository is an append-only log. Only pending rows can be settled.
type ChargeEventRepository interface {
	Append(ctx context.Context, events ...*model.ChargeEvent) error
	// Latest returns the highest attempt for the cycle, or nil, nil
	Latest(ctx context.Context, subscriptionID uuid.UUID, cycleIndex int) (*model.ChargeEvent, error)
	// Settle sets a terminal outcome on a pending event. A non-pending row
	// yields ErrConcurrencyConflict.
	Settle(ctx context.Context, id uuid.UUID, outcome model.ChargeOutcome, providerPaymentID string, at time.Time) error
	// FindByProviderPaymentID returns the most recent event of the
	// subscription recorded with the provider payment id, or nil, nil
	FindByProviderPaymentID(ctx context.Context, subscriptionID uuid.UUID, providerPaymentID string) (*model.ChargeEvent, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*model.ChargeEvent, error)
	// MaxCycle returns the highest cycle index present, 0 when none
	MaxCycle(ctx context.Context, subscriptionID uuid.UUID) (int, error)
}
