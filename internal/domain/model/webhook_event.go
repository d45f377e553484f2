package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookStatus is the processing state of a stored webhook delivery
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusIgnored   WebhookStatus = "ignored"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// Reprocessable reports whether a redelivery of an event in this state must
// be processed again. Only processed and ignored events are final.
func (s WebhookStatus) Reprocessable() bool {
	return s == WebhookStatusPending || s == WebhookStatusFailed
}

// WebhookEvent stores a raw provider delivery. (provider, event_id) is unique
// so redeliveries of handled events are dropped.
type WebhookEvent struct {
	ID                     int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider               string         `gorm:"size:20;not null;uniqueIndex:idx_webhook_provider_event" json:"provider"`
	EventID                string         `gorm:"size:255;not null;uniqueIndex:idx_webhook_provider_event" json:"event_id"`
	EventType              string         `gorm:"size:100;not null" json:"event_type"`
	Kind                   string         `gorm:"size:40;not null;index" json:"kind"`
	ProviderSubscriptionID string         `gorm:"size:100;index" json:"provider_subscription_id,omitempty"`
	Status                 WebhookStatus  `gorm:"type:webhook_status;not null;default:'pending'" json:"status"`
	Payload                datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	LastError              *string        `json:"last_error,omitempty"`
	ProcessedAt            *time.Time     `json:"processed_at,omitempty"`
	CreatedAt              time.Time      `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
