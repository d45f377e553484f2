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
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainErrors.ErrConcurrencyConflict
		}
		r.logger.Error("Failed to create subscription",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	return r.first(conn(ctx, r.db).Where("id = ?", id))
}

func (r *subscriptionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	return r.first(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *subscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, provider, providerSubscriptionID string) (*model.Subscription, error) {
	return r.first(conn(ctx, r.db).Where("provider = ? AND provider_subscription_id = ?", provider, providerSubscriptionID))
}

func (r *subscriptionRepository) first(query *gorm.DB) (*model.Subscription, error) {
	var sub model.Subscription
	if err := query.First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription", zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// Update saves the mutable lifecycle fields
func (r *subscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	sub.UpdatedAt = time.Now()
	result := conn(ctx, r.db).Model(&model.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"status":              sub.Status,
			"next_charge_date":    sub.NextChargeDate,
			"current_cycle_index": sub.CurrentCycleIndex,
			"provider_data":       sub.ProviderData,
			"paused_at":           sub.PausedAt,
			"cancelled_at":        sub.CancelledAt,
			"cancel_reason":       sub.CancelReason,
			"updated_at":          sub.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Error("Failed to update subscription",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrSubscriptionNotFound
	}
	return nil
}

func (r *subscriptionRepository) ListByCustomer(ctx context.Context, customerID string) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := conn(ctx, r.db).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (r *subscriptionRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error) {
	query := conn(ctx, r.db).
		Where("status = ? AND paused_at IS NULL AND next_charge_date <= ?", model.SubscriptionStatusTrial, model.DateOf(asOf)).
		Order("next_charge_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var subs []*model.Subscription
	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	return subs, nil
}
