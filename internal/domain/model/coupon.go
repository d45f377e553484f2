package model

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/google/uuid"
)

// PlanRestriction limits which plan a coupon can be applied to
type PlanRestriction string

const (
	PlanRestrictionAll    PlanRestriction = "all"
	PlanRestrictionPlus   PlanRestriction = "plus"
	PlanRestrictionPro    PlanRestriction = "pro"
	PlanRestrictionMaster PlanRestriction = "master"
)

// Valid reports whether r is a known restriction
func (r PlanRestriction) Valid() bool {
	switch r {
	case PlanRestrictionAll, PlanRestrictionPlus, PlanRestrictionPro, PlanRestrictionMaster:
		return true
	}
	return false
}

// Allows reports whether a coupon with this restriction can be used on planID
func (r PlanRestriction) Allows(planID string) bool {
	return r == PlanRestrictionAll || string(r) == planID
}

// Scan implements sql.Scanner interface
func (r *PlanRestriction) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*r = PlanRestriction(v)
	case []byte:
		*r = PlanRestriction(v)
	default:
		return fmt.Errorf("unsupported plan restriction value: %v", src)
	}
	return nil
}

// Value implements driver.Valuer interface
func (r PlanRestriction) Value() (driver.Value, error) {
	return string(r), nil
}

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)

// NormalizeCouponCode upper-cases and trims a code for case-insensitive lookup
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCouponCode reports whether code is 6 to 12 uppercase alphanumerics
func ValidCouponCode(code string) bool {
	return couponCodePattern.MatchString(code)
}

// Coupon grants a free period and enables the discount ramp after it
type Coupon struct {
	Code             string          `gorm:"primaryKey;size:12" json:"code"`
	Description      string          `gorm:"size:255" json:"description"`
	FreePeriodMonths int             `gorm:"not null;check:free_period_months >= 1" json:"free_period_months"`
	MaxUses          int             `gorm:"not null;check:max_uses >= 1" json:"max_uses"`
	UsesCount        int             `gorm:"not null;default:0;check:uses_count >= 0" json:"uses_count"`
	ExpirationDate   *time.Time      `gorm:"type:date" json:"expiration_date,omitempty"`
	PlanRestriction  PlanRestriction `gorm:"size:10;not null;default:'all'" json:"plan_restriction"`
	IsActive         bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Coupon) TableName() string {
	return "coupons"
}

// IsExpired reports whether the expiration date is strictly before today
func (c *Coupon) IsExpired(today time.Time) bool {
	return c.ExpirationDate != nil && DateOf(*c.ExpirationDate).Before(DateOf(today))
}

// IsRedeemable reports isActive && usesCount < maxUses && not expired
func (c *Coupon) IsRedeemable(today time.Time) bool {
	return c.IsActive && c.UsesCount < c.MaxUses && !c.IsExpired(today)
}

// CheckRedeemable returns the first rule the coupon fails for planID, or nil.
func (c *Coupon) CheckRedeemable(planID string, today time.Time) error {
	switch {
	case c.IsExpired(today):
		return domainErrors.ErrCouponExpired
	case c.UsesCount >= c.MaxUses:
		return domainErrors.ErrCouponExhausted
	case !c.IsActive:
		return domainErrors.ErrCouponInactive
	case !c.PlanRestriction.Allows(planID):
		return domainErrors.ErrPlanNotEligible
	}
	return nil
}

// RedemptionResult is the outcome of a successful coupon validation
type RedemptionResult struct {
	Code             string `json:"code"`
	FreePeriodMonths int    `json:"free_period_months"`
}

// Redemption returns the redemption result for c
func (c *Coupon) Redemption() *RedemptionResult {
	return &RedemptionResult{Code: c.Code, FreePeriodMonths: c.FreePeriodMonths}
}

// CouponRedemption records one use of a coupon by one subscription
type CouponRedemption struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CouponCode     string    `gorm:"size:12;not null;uniqueIndex:idx_coupon_redemption_key" json:"coupon_code"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_coupon_redemption_key" json:"subscription_id"`
	PlanID         string    `gorm:"size:20;not null" json:"plan_id"`
	RedeemedAt     time.Time `gorm:"not null" json:"redeemed_at"`
}

// TableName specifies the table name for GORM
func (CouponRedemption) TableName() string {
	return "coupon_redemptions"
}
