package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeOutcome is the result of one charge attempt
type ChargeOutcome string

const (
	ChargeOutcomePending ChargeOutcome = "pending"
	ChargeOutcomePaid    ChargeOutcome = "paid"
	ChargeOutcomeFailed  ChargeOutcome = "failed"
)

// IsTerminal reports whether o is paid or failed
func (o ChargeOutcome) IsTerminal() bool {
	return o == ChargeOutcomePaid || o == ChargeOutcomeFailed
}

// Scan implements sql.Scanner interface
func (o *ChargeOutcome) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*o = ChargeOutcome(v)
	case []byte:
		*o = ChargeOutcome(v)
	default:
		return fmt.Errorf("unsupported charge outcome value: %v", src)
	}
	return nil
}

// Value implements driver.Valuer interface
func (o ChargeOutcome) Value() (driver.Value, error) {
	return string(o), nil
}

// ChargeEvent is one entry in a subscription's append-only charge log.
// A row is never modified once its outcome is terminal; retries append a new
// attempt for the same cycle.
type ChargeEvent struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SubscriptionID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_charge_events_cycle,priority:1" json:"subscription_id"`
	CycleIndex        int             `gorm:"not null;index:idx_charge_events_cycle,priority:2" json:"cycle_index"`
	Attempt           int             `gorm:"not null;default:1" json:"attempt"`
	DueDate           time.Time       `gorm:"type:date;not null" json:"due_date"`
	Amount            decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Outcome           ChargeOutcome   `gorm:"type:charge_outcome;not null;default:'pending'" json:"outcome"`
	ProviderPaymentID string          `gorm:"size:100" json:"provider_payment_id,omitempty"`
	RecordedAt        *time.Time      `json:"recorded_at,omitempty"`
	CreatedAt         time.Time       `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (ChargeEvent) TableName() string {
	return "charge_events"
}
