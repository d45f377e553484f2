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

type couponRepository struct {
	db         *gorm.DB
	transactor repository.Transactor
	logger     *zap.Logger
}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository(db *gorm.DB, logger *zap.Logger) repository.CouponRepository {
	return &couponRepository{
		db:         db,
		transactor: NewTransactor(db),
		logger:     logger,
	}
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := conn(ctx, r.db).Where("code = ?", model.NormalizeCouponCode(code)).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get coupon", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &coupon, nil
}

func (r *couponRepository) List(ctx context.Context, filter repository.CouponFilter) ([]*model.Coupon, error) {
	query := conn(ctx, r.db).Model(&model.Coupon{})

	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if filter.PlanRestriction != "" {
		query = query.Where("plan_restriction = ?", filter.PlanRestriction)
	}
	if filter.CodePrefix != "" {
		query = query.Where("code LIKE ?", model.NormalizeCouponCode(filter.CodePrefix)+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var coupons []*model.Coupon
	if err := query.Order("created_at DESC, code ASC").Find(&coupons).Error; err != nil {
		r.logger.Error("Failed to list coupons", zap.Error(err))
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

func (r *couponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	if err := conn(ctx, r.db).Create(coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainErrors.ErrCouponCodeTaken
		}
		r.logger.Error("Failed to create coupon", zap.String("code", coupon.Code), zap.Error(err))
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

func (r *couponRepository) Update(ctx context.Context, coupon *model.Coupon) error {
	result := conn(ctx, r.db).Model(&model.Coupon{}).
		Where("code = ?", coupon.Code).
		Updates(map[string]interface{}{
			"description":        coupon.Description,
			"free_period_months": coupon.FreePeriodMonths,
			"max_uses":           coupon.MaxUses,
			"expiration_date":    coupon.ExpirationDate,
			"plan_restriction":   coupon.PlanRestriction,
			"is_active":          coupon.IsActive,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		r.logger.Error("Failed to update coupon", zap.String("code", coupon.Code), zap.Error(result.Error))
		return fmt.Errorf("failed to update coupon: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrCouponNotFound
	}
	return nil
}

func (r *couponRepository) SetUsesCount(ctx context.Context, code string, usesCount int) error {
	result := conn(ctx, r.db).Model(&model.Coupon{}).
		Where("code = ?", model.NormalizeCouponCode(code)).
		Updates(map[string]interface{}{"uses_count": usesCount, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to set coupon uses: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrCouponNotFound
	}
	return nil
}

// Redeem locks the coupon row with SELECT ... FOR UPDATE so concurrent
// redemptions of one code queue behind each other.
func (r *couponRepository) Redeem(ctx context.Context, code string, subscriptionID uuid.UUID, planID string, check repository.RedeemCheck) (*model.Coupon, error) {
	code = model.NormalizeCouponCode(code)
	var redeemed model.Coupon

	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		tx := conn(ctx, r.db)

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("code = ?", code).First(&redeemed).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErrors.ErrCouponNotFound
			}
			return fmt.Errorf("failed to lock coupon: %w", err)
		}

		var existing int64
		if err := tx.Model(&model.CouponRedemption{}).
			Where("coupon_code = ? AND subscription_id = ?", code, subscriptionID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check redemption: %w", err)
		}
		if existing > 0 {
			return domainErrors.ErrAlreadyRedeemed
		}

		if check != nil {
			if err := check(&redeemed); err != nil {
				return err
			}
		}

		result := tx.Model(&model.Coupon{}).
			Where("code = ? AND uses_count < max_uses", code).
			Updates(map[string]interface{}{
				"uses_count": gorm.Expr("uses_count + 1"),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to increment coupon uses: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domainErrors.ErrConcurrencyConflict
		}
		redeemed.UsesCount++

		redemption := &model.CouponRedemption{
			ID:             uuid.New(),
			CouponCode:     code,
			SubscriptionID: subscriptionID,
			PlanID:         planID,
			RedeemedAt:     time.Now(),
		}
		if err := tx.Create(redemption).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domainErrors.ErrAlreadyRedeemed
			}
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Coupon redeemed",
		zap.String("code", code),
		zap.String("subscription_id", subscriptionID.String()),
		zap.Int("uses_count", redeemed.UsesCount),
		zap.Int("max_uses", redeemed.MaxUses))
	return &redeemed, nil
}

func (r *couponRepository) ListRedemptions(ctx context.Context, code string) ([]*model.CouponRedemption, error) {
	var redemptions []*model.CouponRedemption
	err := conn(ctx, r.db).
		Where("coupon_code = ?", model.NormalizeCouponCode(code)).
		Order("redeemed_at ASC").
		Find(&redemptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	return redemptions, nil
}
