package errors

import "errors"

var (
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponExpired   = errors.New("coupon expired")
	ErrCouponExhausted = errors.New("coupon has no uses left")
	ErrCouponInactive  = errors.New("coupon is inactive")
	ErrPlanNotEligible = errors.New("coupon is not valid for this plan")
	ErrAlreadyRedeemed = errors.New("coupon already redeemed for this subscription")
	ErrCouponCodeTaken = errors.New("coupon code already exists")
)
