package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// IsTerminal reports whether no transition can leave s
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled
}

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		return fmt.Errorf("unsupported subscription status value: %v", src)
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Subscription is mutated only through the lifecycle transition function.
// Cancelled rows are kept for audit and reporting.
type Subscription struct {
	ID                     uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID             string             `gorm:"not null;size:100;index" json:"customer_id"`
	CustomerEmail          string             `gorm:"size:255" json:"customer_email"`
	CustomerName           string             `gorm:"size:200" json:"customer_name"`
	TaxIDCiphertext        string             `gorm:"column:tax_id_ciphertext" json:"-"`
	TaxIDIV                string             `gorm:"column:tax_id_iv;size:32" json:"-"`
	PlanID                 string             `gorm:"not null;size:20;index" json:"plan_id"`
	BillingCadence         BillingCadence     `gorm:"size:10;not null" json:"billing_cadence"`
	AppliedCouponCode      *string            `gorm:"size:12" json:"applied_coupon_code,omitempty"`
	FreePeriodMonths       int                `gorm:"not null;default:0" json:"free_period_months"`
	Status                 SubscriptionStatus `gorm:"type:subscription_status;not null" json:"status"`
	StartDate              time.Time          `gorm:"type:date;not null" json:"start_date"`
	NextChargeDate         time.Time          `gorm:"type:date;not null;index" json:"next_charge_date"`
	CurrentCycleIndex      int                `gorm:"not null;default:1" json:"current_cycle_index"`
	Provider               string             `gorm:"size:20;not null;uniqueIndex:idx_provider_subscription" json:"provider"`
	ProviderSubscriptionID string             `gorm:"size:100;not null;uniqueIndex:idx_provider_subscription" json:"provider_subscription_id"`
	PaymentMethod          string             `gorm:"size:20;not null" json:"payment_method"`
	ProviderData           datatypes.JSONMap  `gorm:"type:jsonb" json:"provider_data,omitempty"`
	PausedAt               *time.Time         `json:"paused_at,omitempty"`
	CancelledAt            *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason           string             `gorm:"size:255" json:"cancel_reason,omitempty"`
	CreatedAt              time.Time          `gorm:"default:now()" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}

// CouponResult returns the applied coupon as a redemption result, or nil
func (s *Subscription) CouponResult() *RedemptionResult {
	if s.AppliedCouponCode == nil {
		return nil
	}
	return &RedemptionResult{Code: *s.AppliedCouponCode, FreePeriodMonths: s.FreePeriodMonths}
}
