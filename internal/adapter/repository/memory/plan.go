package memory

import (
	"context"
	"sort"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/model"
)

type planRepository struct {
	s *Store
}

func (r *planRepository) List(_ context.Context) ([]*model.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	plans := make([]*model.Plan, 0, len(r.s.plans))
	for _, p := range r.s.plans {
		c := *p
		plans = append(plans, &c)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].SortOrder < plans[j].SortOrder })
	return plans, nil
}

func (r *planRepository) GetByID(_ context.Context, id string) (*model.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.plans[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *planRepository) Upsert(_ context.Context, plan *model.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	c := *plan
	if existing, ok := r.s.plans[plan.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.s.plans[plan.ID] = &c
	return nil
}
