package usecase

import (
	"context"
	"fmt"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"go.uber.org/zap"
)

// PlanService serves the plan catalog
type PlanService struct {
	planRepo repository.PlanRepository
	logger   *zap.Logger
}

func NewPlanService(planRepo repository.PlanRepository, logger *zap.Logger) *PlanService {
	return &PlanService{planRepo: planRepo, logger: logger}
}

// ListPlans returns every plan ordered for display
func (s *PlanService) ListPlans(ctx context.Context) ([]*model.Plan, error) {
	plans, err := s.planRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// GetPlan returns ErrPlanNotFound for unknown ids
func (s *PlanService) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	plan, err := s.planRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrPlanNotFound, id)
	}
	return plan, nil
}

// Seed upserts the default catalog. Running it twice changes nothing.
func (s *PlanService) Seed(ctx context.Context) error {
	return s.SeedCatalog(ctx, model.DefaultPlans())
}

// SeedCatalog upserts plans. Provider plan ids already stored are kept.
func (s *PlanService) SeedCatalog(ctx context.Context, plans []model.Plan) error {
	for _, p := range plans {
		plan := p
		existing, err := s.planRepo.GetByID(ctx, plan.ID)
		if err != nil {
			return fmt.Errorf("failed to look up plan %s: %w", plan.ID, err)
		}
		if existing != nil {
			plan.MercadoPagoPlanID = existing.MercadoPagoPlanID
		}
		if err := s.planRepo.Upsert(ctx, &plan); err != nil {
			return fmt.Errorf("failed to upsert plan %s: %w", plan.ID, err)
		}
		s.logger.Info("Plan seeded",
			zap.String("plan_id", plan.ID),
			zap.String("monthly_price", plan.MonthlyPrice.StringFixed(2)),
			zap.String("annual_price", plan.AnnualPrice.StringFixed(2)))
	}
	return nil
}
