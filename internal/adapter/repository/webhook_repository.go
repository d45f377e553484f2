package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts the event. On a duplicate (provider, event_id) it reports
// whether the stored row still needs processing.
func (r *webhookRepository) Save(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	if event.Status == "" {
		event.Status = model.WebhookStatusPending
	}
	result := conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to save webhook event: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var existing model.WebhookEvent
	err := conn(ctx, r.db).
		Select("id", "status").
		Where("provider = ? AND event_id = ?", event.Provider, event.EventID).
		First(&existing).Error
	if err != nil {
		return false, fmt.Errorf("failed to load stored webhook event: %w", err)
	}
	event.ID = existing.ID
	event.Status = existing.Status
	return existing.Status.Reprocessable(), nil
}

func (r *webhookRepository) MarkStatus(ctx context.Context, id int64, status model.WebhookStatus, lastError string) error {
	updates := map[string]interface{}{
		"status":       status,
		"processed_at": time.Now(),
		"last_error":   nil,
	}
	if lastError != "" {
		updates["last_error"] = lastError
	}
	if err := conn(ctx, r.db).Model(&model.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark webhook event: %w", err)
	}
	return nil
}
