package usecase_test

import (
	"context"
	"errors"
	"testing"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockPlanRegistrar struct {
	mock.Mock
}

func (m *MockPlanRegistrar) CreatePlan(ctx context.Context, plan *model.Plan, cadence model.BillingCadence) (string, error) {
	args := m.Called(ctx, plan, cadence)
	return args.String(0), args.Error(1)
}

func TestPlanService_ListAndGet(t *testing.T) {
	f := newFixture(t)

	plans, err := f.plans.ListPlans(f.ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, []string{"plus", "pro", "master"}, []string{plans[0].ID, plans[1].ID, plans[2].ID})

	pro, err := f.plans.GetPlan(f.ctx, "pro")
	require.NoError(t, err)
	assert.Equal(t, "420.00", pro.AnnualPrice.StringFixed(2))

	_, err = f.plans.GetPlan(f.ctx, "gold")
	assert.ErrorIs(t, err, domainErrors.ErrPlanNotFound)
}

func TestPlanSyncService_SyncMercadoPago(t *testing.T) {
	f := newFixture(t)
	registrar := new(MockPlanRegistrar)
	isPlan := func(id string) interface{} {
		return mock.MatchedBy(func(p *model.Plan) bool { return p.ID == id })
	}
	registrar.On("CreatePlan", mock.Anything, isPlan("plus"), model.CadenceMonthly).Return("mp-plan-plus", nil).Once()
	registrar.On("CreatePlan", mock.Anything, isPlan("pro"), model.CadenceMonthly).Return("", errors.New("rejected")).Once()
	registrar.On("CreatePlan", mock.Anything, isPlan("master"), model.CadenceMonthly).Return("mp-plan-master", nil).Once()

	sync := usecase.NewPlanSyncService(f.repos.Plan, registrar, zap.NewNop())
	registered, err := sync.SyncMercadoPago(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, registered)

	plus, err := f.plans.GetPlan(f.ctx, "plus")
	require.NoError(t, err)
	require.NotNil(t, plus.MercadoPagoPlanID)
	assert.Equal(t, "mp-plan-plus", *plus.MercadoPagoPlanID)

	// Reseeding keeps registered ids.
	require.NoError(t, f.plans.Seed(f.ctx))
	plus, err = f.plans.GetPlan(f.ctx, "plus")
	require.NoError(t, err)
	require.NotNil(t, plus.MercadoPagoPlanID)
	assert.Equal(t, "mp-plan-plus", *plus.MercadoPagoPlanID)

	// Only the plan that failed is retried.
	registrar.On("CreatePlan", mock.Anything, isPlan("pro"), model.CadenceMonthly).Return("mp-plan-pro", nil).Once()
	registered, err = sync.SyncMercadoPago(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, registered)
	registrar.AssertExpectations(t)
	registrar.AssertNumberOfCalls(t, "CreatePlan", 4)
}
