package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type chargeEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewChargeEventRepository creates a new charge event repository
func NewChargeEventRepository(db *gorm.DB, logger *zap.Logger) repository.ChargeEventRepository {
	return &chargeEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *chargeEventRepository) Append(ctx context.Context, events ...*model.ChargeEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.Attempt == 0 {
			e.Attempt = 1
		}
	}
	if err := conn(ctx, r.db).Create(events).Error; err != nil {
		r.logger.Error("Failed to append charge events",
			zap.String("subscription_id", events[0].SubscriptionID.String()),
			zap.Int("count", len(events)),
			zap.Error(err))
		return fmt.Errorf("failed to append charge events: %w", err)
	}
	return nil
}

func (r *chargeEventRepository) Latest(ctx context.Context, subscriptionID uuid.UUID, cycleIndex int) (*model.ChargeEvent, error) {
	var event model.ChargeEvent
	err := conn(ctx, r.db).
		Where("subscription_id = ? AND cycle_index = ?", subscriptionID, cycleIndex).
		Order("attempt DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get charge event: %w", err)
	}
	return &event, nil
}

// Settle only touches pending rows, so terminal rows stay immutable
func (r *chargeEventRepository) Settle(ctx context.Context, id uuid.UUID, outcome model.ChargeOutcome, providerPaymentID string, at time.Time) error {
	result := conn(ctx, r.db).Model(&model.ChargeEvent{}).
		Where("id = ? AND outcome = ?", id, model.ChargeOutcomePending).
		Updates(map[string]interface{}{
			"outcome":             outcome,
			"provider_payment_id": providerPaymentID,
			"recorded_at":         at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to settle charge event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrConcurrencyConflict
	}
	return nil
}

func (r *chargeEventRepository) FindByProviderPaymentID(ctx context.Context, subscriptionID uuid.UUID, providerPaymentID string) (*model.ChargeEvent, error) {
	var event model.ChargeEvent
	err := conn(ctx, r.db).
		Where("subscription_id = ? AND provider_payment_id = ?", subscriptionID, providerPaymentID).
		Order("cycle_index DESC, attempt DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find charge event by payment: %w", err)
	}
	return &event, nil
}

func (r *chargeEventRepository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*model.ChargeEvent, error) {
	var events []*model.ChargeEvent
	err := conn(ctx, r.db).
		Where("subscription_id = ?", subscriptionID).
		Order("cycle_index ASC, attempt ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list charge events: %w", err)
	}
	return events, nil
}

func (r *chargeEventRepository) MaxCycle(ctx context.Context, subscriptionID uuid.UUID) (int, error) {
	var maxCycle int
	err := conn(ctx, r.db).Model(&model.ChargeEvent{}).
		Where("subscription_id = ?", subscriptionID).
		Select("COALESCE(MAX(cycle_index), 0)").
		Scan(&maxCycle).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get max cycle: %w", err)
	}
	return maxCycle, nil
}
