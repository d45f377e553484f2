package repository

import (
	"context"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/google/uuid"
)

// CouponFilter narrows ListCoupons. Zero values match everything.
type CouponFilter struct {
	Active          *bool
	PlanRestriction model.PlanRestriction
	CodePrefix      string
	Limit           int
	Offset          int
}

// RedeemCheck validates a locked coupon row before its use is counted
type RedeemCheck func(coupon *model.Coupon) error

type CouponRepository interface {
	// GetByCode returns nil, nil when no coupon matches the normalized code
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	List(ctx context.Context, filter CouponFilter) ([]*model.Coupon, error)
	// Create fails with ErrCouponCodeTaken on a duplicate code
	Create(ctx context.Context, coupon *model.Coupon) error
	Update(ctx context.Context, coupon *model.Coupon) error
	// SetUsesCount is the explicit admin correction of usesCount
	SetUsesCount(ctx context.Context, code string, usesCount int) error

	// Redeem serializes on the coupon code. Under that lock it rejects a
	// second redemption for subscriptionID with ErrAlreadyRedeemed, runs
	// check, then increments usesCount only while it is below maxUses and
	// records the redemption. A lost increment race yields
	// ErrConcurrencyConflict.
	Redeem(ctx context.Context, code string, subscriptionID uuid.UUID, planID string, check RedeemCheck) (*model.Coupon, error)
	ListRedemptions(ctx context.Context, code string) ([]*model.CouponRedemption, error)
}
