package repository

import (
	"context"

	"github.com/clinicore/billing-engine/internal/domain/model"
)

type PlanRepository interface {
	List(ctx context.Context) ([]*model.Plan, error)
	// GetByID returns nil, nil when the plan does not exist
	GetByID(ctx context.Context, id string) (*model.Plan, error)
	Upsert(ctx context.Context, plan *model.Plan) error
}
