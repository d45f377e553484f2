package usecase

import (
	"context"
	"fmt"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"go.uber.org/zap"
)

// PlanRegistrar registers a plan with a provider and returns the provider id
type PlanRegistrar interface {
	CreatePlan(ctx context.Context, plan *model.Plan, cadence model.BillingCadence) (string, error)
}

// PlanSyncService registers local plans with Mercado Pago as preapproval plans
type PlanSyncService struct {
	planRepo  repository.PlanRepository
	registrar PlanRegistrar
	logger    *zap.Logger
}

// NewPlanSyncService creates a new plan synchronization service
func NewPlanSyncService(planRepo repository.PlanRepository, registrar PlanRegistrar, logger *zap.Logger) *PlanSyncService {
	return &PlanSyncService{
		planRepo:  planRepo,
		registrar: registrar,
		logger:    logger,
	}
}

// SyncMercadoPago creates a monthly preapproval plan for every plan that has
// none yet and stores its id. It returns the number of plans registered.
func (s *PlanSyncService) SyncMercadoPago(ctx context.Context) (int, error) {
	plans, err := s.planRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list plans: %w", err)
	}

	synced := 0
	for _, plan := range plans {
		if plan.MercadoPagoPlanID != nil && *plan.MercadoPagoPlanID != "" {
			s.logger.Debug("Plan already registered",
				zap.String("plan_id", plan.ID),
				zap.String("mercadopago_plan_id", *plan.MercadoPagoPlanID))
			continue
		}

		id, err := s.registrar.CreatePlan(ctx, plan, model.CadenceMonthly)
		if err != nil {
			s.logger.Error("Failed to register plan",
				zap.String("plan_id", plan.ID),
				zap.Error(err))
			// Continue with other plans
			continue
		}

		plan.MercadoPagoPlanID = &id
		if err := s.planRepo.Upsert(ctx, plan); err != nil {
			return synced, fmt.Errorf("failed to store provider plan id for %s: %w", plan.ID, err)
		}
		synced++
		s.logger.Info("Plan registered with Mercado Pago",
			zap.String("plan_id", plan.ID),
			zap.String("mercadopago_plan_id", id))
	}
	return synced, nil
}
