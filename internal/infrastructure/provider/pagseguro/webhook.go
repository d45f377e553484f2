package pagseguro

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/provider"
)

// TranslateWebhook maps a PagSeguro notification to a DomainEvent
func (g *Gateway) TranslateWebhook(payload []byte) (*provider.DomainEvent, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, err
	}

	event := &provider.DomainEvent{
		Kind:       provider.EventUnknown,
		EventID:    n.ID,
		EventType:  n.Event,
		Status:     n.Data.Status,
		CycleIndex: n.Data.Cycle,
	}
	if n.Data.Amount != nil {
		event.Amount = fromCents(n.Data.Amount.Value)
	}
	if t, err := time.Parse(time.RFC3339, n.CreatedAt); err == nil {
		event.OccurredAt = t
	}

	switch strings.ToUpper(n.Event) {
	case "SUBSCRIPTION.CREATED":
		event.Kind = provider.EventSubscriptionCreated
		event.ProviderSubscriptionID = n.Data.ID
		event.ExternalReference = n.Data.ReferenceID
	case "SUBSCRIPTION.UPDATED":
		event.Kind = provider.EventSubscriptionUpdated
		if isCancelled(n.Data.Status) {
			event.Kind = provider.EventSubscriptionCancelled
		}
		event.ProviderSubscriptionID = n.Data.ID
		event.ExternalReference = n.Data.ReferenceID
	case "SUBSCRIPTION.CANCELLED", "SUBSCRIPTION.CANCELED":
		event.Kind = provider.EventSubscriptionCancelled
		event.ProviderSubscriptionID = n.Data.ID
		event.ExternalReference = n.Data.ReferenceID
	case "PAYMENT.SUCCEEDED":
		event.Kind = provider.EventPaymentSucceeded
		event.ProviderSubscriptionID = n.Data.SubscriptionID
		event.ProviderPaymentID = n.Data.ID
	case "PAYMENT.FAILED":
		event.Kind = provider.EventPaymentFailed
		event.ProviderSubscriptionID = n.Data.SubscriptionID
		event.ProviderPaymentID = n.Data.ID
	}

	return event, nil
}
