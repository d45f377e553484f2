package memory

import (
	"context"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/model"
)

type webhookRepository struct {
	s *Store
}

func (r *webhookRepository) Save(_ context.Context, event *model.WebhookEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := event.Provider + "/" + event.EventID
	if existing, ok := r.s.webhooks[key]; ok {
		event.ID = existing.ID
		event.Status = existing.Status
		return existing.Status.Reprocessable(), nil
	}
	r.s.webhookSeq++
	event.ID = r.s.webhookSeq
	event.CreatedAt = time.Now()
	if event.Status == "" {
		event.Status = model.WebhookStatusPending
	}
	c := *event
	r.s.webhooks[key] = &c
	return true, nil
}

func (r *webhookRepository) MarkStatus(_ context.Context, id int64, status model.WebhookStatus, lastError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.webhooks {
		if e.ID != id {
			continue
		}
		now := time.Now()
		e.Status = status
		e.ProcessedAt = &now
		e.LastError = nil
		if lastError != "" {
			e.LastError = &lastError
		}
		return nil
	}
	return nil
}
