package repository

import (
	"context"

	"github.com/clinicore/billing-engine/internal/domain/model"
)

type WebhookRepository interface {
	// Save stores the event and reports whether it must be processed. A
	// redelivery of a stored (provider, event_id) is processed again only
	// while the stored row is pending or failed, and then reuses its id.
	Save(ctx context.Context, event *model.WebhookEvent) (bool, error)
	MarkStatus(ctx context.Context, id int64, status model.WebhookStatus, lastError string) error
}
