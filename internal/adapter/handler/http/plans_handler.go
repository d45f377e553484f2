package http

import (
	"net/http"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/schedule"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type PlansHandler struct {
	logger *zap.Logger
	plans  *usecase.PlanService
}

func NewPlansHandler(logger *zap.Logger, plans *usecase.PlanService) *PlansHandler {
	return &PlansHandler{logger: logger, plans: plans}
}

// GetPlans lists the catalog with both cadence prices
// GET /api/v1/plans
func (h *PlansHandler) GetPlans(c echo.Context) error {
	plans, err := h.plans.ListPlans(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}

	h.logger.Debug("Plans fetched", zap.Int("count", len(plans)))
	return c.JSON(http.StatusOK, echo.Map{
		"plans": plans,
	})
}

// GetDiscountTable returns the explicit discount entries of a cadence
// GET /api/v1/plans/discounts?billing_cadence=monthly
func (h *PlansHandler) GetDiscountTable(c echo.Context) error {
	cadence := model.BillingCadence(c.QueryParam("billing_cadence"))
	if cadence == "" {
		cadence = model.CadenceMonthly
	}
	if !cadence.Valid() {
		return respondError(c, h.logger, domainErrors.NewValidationError("billing_cadence", "must be monthly or annual"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"billing_cadence": cadence,
		"entries":         schedule.DiscountTable(cadence),
	})
}
