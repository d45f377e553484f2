package usecase

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/clinicore/billing-engine/internal/domain/schedule"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CouponService validates and redeems coupons at checkout
type CouponService struct {
	couponRepo repository.CouponRepository
	planRepo   repository.PlanRepository
	logger     *zap.Logger
}

func NewCouponService(couponRepo repository.CouponRepository, planRepo repository.PlanRepository, logger *zap.Logger) *CouponService {
	return &CouponService{
		couponRepo: couponRepo,
		planRepo:   planRepo,
		logger:     logger,
	}
}

// Validate checks that code can be redeemed on planID today without
// consuming a use. Rules are checked in order: expired, exhausted, inactive,
// plan not eligible.
func (s *CouponService) Validate(ctx context.Context, code, planID string, today time.Time) (*model.RedemptionResult, error) {
	coupon, err := s.lookup(ctx, code, planID)
	if err != nil {
		return nil, err
	}
	if err := coupon.CheckRedeemable(planID, today); err != nil {
		return nil, err
	}
	return coupon.Redemption(), nil
}

// Redeem consumes one use of code for subscriptionID. Redeeming the same
// code twice for one subscription fails with ErrAlreadyRedeemed.
func (s *CouponService) Redeem(ctx context.Context, code, planID string, subscriptionID uuid.UUID, today time.Time) (*model.RedemptionResult, error) {
	code = model.NormalizeCouponCode(code)
	if code == "" {
		return nil, domainErrors.NewValidationError("coupon_code", "is required")
	}
	if planID == "" {
		return nil, domainErrors.NewValidationError("plan_id", "is required")
	}

	coupon, err := s.couponRepo.Redeem(ctx, code, subscriptionID, planID, func(c *model.Coupon) error {
		return c.CheckRedeemable(planID, today)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Coupon redeemed",
		zap.String("code", coupon.Code),
		zap.String("subscription_id", subscriptionID.String()),
		zap.String("plan_id", planID),
		zap.Int("uses_count", coupon.UsesCount),
		zap.Int("max_uses", coupon.MaxUses))
	return coupon.Redemption(), nil
}

// ListCoupons is read-only
func (s *CouponService) ListCoupons(ctx context.Context, filter repository.CouponFilter) ([]*model.Coupon, error) {
	if filter.CodePrefix != "" {
		filter.CodePrefix = model.NormalizeCouponCode(filter.CodePrefix)
	}
	coupons, err := s.couponRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

// AvailableCoupon is the customer view of a redeemable coupon
type AvailableCoupon struct {
	Code             string                `json:"code"`
	Description      string                `json:"description"`
	FreePeriodMonths int                   `json:"free_period_months"`
	PlanRestriction  model.PlanRestriction `json:"plan_restriction"`
	ExpirationDate   *time.Time            `json:"expiration_date,omitempty"`
}

// ListAvailable returns the coupons a customer can redeem today: active,
// not expired and not exhausted. A non-empty planID also drops coupons
// restricted to another plan.
func (s *CouponService) ListAvailable(ctx context.Context, planID string, today time.Time) ([]AvailableCoupon, error) {
	if planID != "" {
		plan, err := s.planRepo.GetByID(ctx, planID)
		if err != nil {
			return nil, fmt.Errorf("failed to get plan: %w", err)
		}
		if plan == nil {
			return nil, fmt.Errorf("%w: %s", domainErrors.ErrPlanNotFound, planID)
		}
	}

	active := true
	coupons, err := s.couponRepo.List(ctx, repository.CouponFilter{Active: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	available := make([]AvailableCoupon, 0, len(coupons))
	for _, c := range coupons {
		if !c.IsRedeemable(today) {
			continue
		}
		if planID != "" && !c.PlanRestriction.Allows(planID) {
			continue
		}
		available = append(available, AvailableCoupon{
			Code:             c.Code,
			Description:      c.Description,
			FreePeriodMonths: c.FreePeriodMonths,
			PlanRestriction:  c.PlanRestriction,
			ExpirationDate:   c.ExpirationDate,
		})
	}
	return available, nil
}

// CouponPreview is what a customer sees before checkout
type CouponPreview struct {
	Redemption *model.RedemptionResult `json:"redemption"`
	Schedule   *schedule.Schedule      `json:"schedule"`
}

// Preview validates code and computes the resulting schedule for planID at
// cadence starting today. Nothing is redeemed.
func (s *CouponService) Preview(ctx context.Context, code, planID string, cadence model.BillingCadence, today time.Time) (*CouponPreview, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrPlanNotFound, planID)
	}

	redemption, err := s.Validate(ctx, code, planID, today)
	if err != nil {
		return nil, err
	}

	sched, err := schedule.Compute(plan, cadence, redemption, today)
	if err != nil {
		return nil, err
	}
	return &CouponPreview{Redemption: redemption, Schedule: sched}, nil
}

func (s *CouponService) lookup(ctx context.Context, code, planID string) (*model.Coupon, error) {
	code = model.NormalizeCouponCode(code)
	if code == "" {
		return nil, domainErrors.NewValidationError("coupon_code", "is required")
	}
	if planID == "" {
		return nil, domainErrors.NewValidationError("plan_id", "is required")
	}

	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	if coupon == nil {
		return nil, domainErrors.ErrCouponNotFound
	}
	return coupon, nil
}
