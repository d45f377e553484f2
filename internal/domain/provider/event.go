package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind is the provider-independent type of a webhook event
type EventKind string

const (
	EventSubscriptionCreated   EventKind = "subscription_created"
	EventSubscriptionUpdated   EventKind = "subscription_updated"
	EventSubscriptionCancelled EventKind = "subscription_cancelled"
	EventPaymentSucceeded      EventKind = "payment_succeeded"
	EventPaymentFailed         EventKind = "payment_failed"
	EventUnknown               EventKind = "unknown"
)

// IsPayment reports whether k carries a charge outcome
func (k EventKind) IsPayment() bool {
	return k == EventPaymentSucceeded || k == EventPaymentFailed
}

// DomainEvent is a translated webhook delivery
type DomainEvent struct {
	Kind EventKind `json:"kind"`
	// EventID is the provider's delivery id, used for deduplication
	EventID string `json:"event_id"`
	// EventType is the raw provider event name
	EventType              string `json:"event_type"`
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	// ExternalReference is our subscription id when the provider echoes it
	ExternalReference string          `json:"external_reference,omitempty"`
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	Status            string          `json:"status,omitempty"`
	// CycleIndex is 0 when the provider does not report it
	CycleIndex int             `json:"cycle_index,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}
