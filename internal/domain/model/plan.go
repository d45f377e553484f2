package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BillingCadence is the billing frequency of a subscription
type BillingCadence string

const (
	CadenceMonthly BillingCadence = "monthly"
	CadenceAnnual  BillingCadence = "annual"
)

// Valid reports whether c is a known cadence
func (c BillingCadence) Valid() bool {
	return c == CadenceMonthly || c == CadenceAnnual
}

// CycleLengthMonths returns the number of months in one billing cycle
func (c BillingCadence) CycleLengthMonths() int {
	if c == CadenceAnnual {
		return 12
	}
	return 1
}

// Scan implements sql.Scanner interface
func (c *BillingCadence) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*c = BillingCadence(v)
	case []byte:
		*c = BillingCadence(v)
	default:
		return fmt.Errorf("unsupported billing cadence value: %v", src)
	}
	return nil
}

// Value implements driver.Valuer interface
func (c BillingCadence) Value() (driver.Value, error) {
	return string(c), nil
}

// Plan is an immutable catalog entry. Prices are in BRL.
type Plan struct {
	ID                string          `gorm:"primaryKey;size:20" json:"id"`
	Name              string          `gorm:"not null;size:100" json:"name"`
	MonthlyPrice      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"monthly_price"`
	AnnualPrice       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"annual_price"`
	Currency          string          `gorm:"size:3;not null;default:'BRL'" json:"currency"`
	SortOrder         int             `gorm:"default:0" json:"sort_order"`
	MercadoPagoPlanID *string         `gorm:"size:100" json:"mercadopago_plan_id,omitempty"`
	CreatedAt         time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Plan) TableName() string {
	return "plans"
}

// BasePrice returns the price charged per cycle for the given cadence
func (p *Plan) BasePrice(cadence BillingCadence) decimal.Decimal {
	if cadence == CadenceAnnual {
		return p.AnnualPrice
	}
	return p.MonthlyPrice
}

// DefaultPlans is the catalog seeded at deploy time.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "plus", Name: "Plus", MonthlyPrice: decimal.RequireFromString("15.00"), AnnualPrice: decimal.RequireFromString("180.00"), Currency: "BRL", SortOrder: 1},
		{ID: "pro", Name: "Pro", MonthlyPrice: decimal.RequireFromString("35.00"), AnnualPrice: decimal.RequireFromString("420.00"), Currency: "BRL", SortOrder: 2},
		{ID: "master", Name: "Master", MonthlyPrice: decimal.RequireFromString("45.00"), AnnualPrice: decimal.RequireFromString("540.00"), Currency: "BRL", SortOrder: 3},
	}
}
