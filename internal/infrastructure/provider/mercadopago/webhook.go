package mercadopago

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/provider"
)

// Notification types arrive either as "preapproval.updated" actions or as
// a type plus a bare action.
var typeAliases = map[string]string{
	"subscription_preapproval":        "preapproval",
	"preapproval":                     "preapproval",
	"subscription_authorized_payment": "payment",
	"payment":                         "payment",
}

// TranslateWebhook maps a Mercado Pago notification to a DomainEvent
func (g *Gateway) TranslateWebhook(payload []byte) (*provider.DomainEvent, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, err
	}

	eventType := n.Action
	if !strings.Contains(eventType, ".") {
		if alias, ok := typeAliases[n.Type]; ok && eventType != "" {
			eventType = alias + "." + eventType
		}
	}

	event := &provider.DomainEvent{
		Kind:              provider.EventUnknown,
		EventID:           string(n.ID),
		EventType:         eventType,
		ExternalReference: n.Data.ExternalReference,
		Status:            n.Data.Status,
		CycleIndex:        n.Data.Cycle,
		Amount:            n.Data.TransactionAmount,
	}
	if t, err := time.Parse(time.RFC3339, n.DateCreated); err == nil {
		event.OccurredAt = t
	}

	switch eventType {
	case "preapproval.created":
		event.Kind = provider.EventSubscriptionCreated
		event.ProviderSubscriptionID = string(n.Data.ID)
	case "preapproval.updated":
		event.Kind = provider.EventSubscriptionUpdated
		if n.Data.Status == statusCancelled {
			event.Kind = provider.EventSubscriptionCancelled
		}
		event.ProviderSubscriptionID = string(n.Data.ID)
	case "preapproval.paused":
		event.Kind = provider.EventSubscriptionUpdated
		event.ProviderSubscriptionID = string(n.Data.ID)
	case "preapproval.cancelled":
		event.Kind = provider.EventSubscriptionCancelled
		event.ProviderSubscriptionID = string(n.Data.ID)
	case "payment.created", "payment.updated":
		event.ProviderPaymentID = string(n.Data.ID)
		event.ProviderSubscriptionID = n.Data.PreapprovalID
		switch n.Data.Status {
		case "approved", "processed":
			event.Kind = provider.EventPaymentSucceeded
		case "rejected", "cancelled":
			event.Kind = provider.EventPaymentFailed
		}
	}

	return event, nil
}
