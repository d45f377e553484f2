package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type planRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB, logger *zap.Logger) repository.PlanRepository {
	return &planRepository{
		db:     db,
		logger: logger,
	}
}

// List returns the catalog ordered for display
func (r *planRepository) List(ctx context.Context) ([]*model.Plan, error) {
	var plans []*model.Plan
	if err := conn(ctx, r.db).Order("sort_order ASC").Find(&plans).Error; err != nil {
		r.logger.Error("Failed to list plans", zap.Error(err))
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (r *planRepository) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	var plan model.Plan
	err := conn(ctx, r.db).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get plan", zap.String("plan_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

// Upsert inserts the plan or refreshes its catalog fields
func (r *planRepository) Upsert(ctx context.Context, plan *model.Plan) error {
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "monthly_price", "annual_price", "currency", "sort_order", "mercado_pago_plan_id", "updated_at"}),
	}).Create(plan).Error
	if err != nil {
		r.logger.Error("Failed to upsert plan", zap.String("plan_id", plan.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}
