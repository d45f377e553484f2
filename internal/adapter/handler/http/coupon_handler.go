package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/entity"
	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type CouponHandler struct {
	logger  *zap.Logger
	coupons *usecase.CouponService
	admin   *usecase.CouponAdminService
	now     func() time.Time
}

func NewCouponHandler(logger *zap.Logger, coupons *usecase.CouponService, admin *usecase.CouponAdminService) *CouponHandler {
	return &CouponHandler{
		logger:  logger,
		coupons: coupons,
		admin:   admin,
		now:     time.Now,
	}
}

// ValidateCoupon returns the redemption decision and the resulting
// schedule without redeeming
// GET /api/v1/coupons/:code/validate?plan_id=plus&billing_cadence=monthly
func (h *CouponHandler) ValidateCoupon(c echo.Context) error {
	cadence := model.BillingCadence(c.QueryParam("billing_cadence"))
	if cadence == "" {
		cadence = model.CadenceMonthly
	}

	preview, err := h.coupons.Preview(c.Request().Context(), c.Param("code"), c.QueryParam("plan_id"), cadence, model.DateOf(h.now()))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, preview)
}

// ListAvailableCoupons
// GET /api/v1/coupons/available?plan_id=plus
func (h *CouponHandler) ListAvailableCoupons(c echo.Context) error {
	coupons, err := h.coupons.ListAvailable(c.Request().Context(), c.QueryParam("plan_id"), model.DateOf(h.now()))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"coupons": coupons})
}

// ListCoupons
// GET /api/v1/admin/coupons?active=true&plan_restriction=plus&code_prefix=WEL&page=1&limit=20
func (h *CouponHandler) ListCoupons(c echo.Context) error {
	var params entity.PaginationParams
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &params); err != nil {
		return respondError(c, h.logger, domainErrors.NewValidationError("page", "must be a number"))
	}
	params.Validate()

	filter, err := couponFilter(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	filter.Offset = params.CalculateOffset()
	filter.Limit = params.Limit + 1

	coupons, err := h.coupons.ListCoupons(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, entity.NewPage(params, coupons))
}

// CreateCoupon
// POST /api/v1/admin/coupons
func (h *CouponHandler) CreateCoupon(c echo.Context) error {
	var input usecase.CreateCouponInput
	if err := c.Bind(&input); err != nil {
		return respondError(c, h.logger, domainErrors.NewValidationError("body", "malformed request body"))
	}

	coupon, err := h.admin.Create(c.Request().Context(), input)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, coupon)
}

// UpdateCoupon
// PUT /api/v1/admin/coupons/:code
func (h *CouponHandler) UpdateCoupon(c echo.Context) error {
	var input usecase.UpdateCouponInput
	if err := c.Bind(&input); err != nil {
		return respondError(c, h.logger, domainErrors.NewValidationError("body", "malformed request body"))
	}

	coupon, err := h.admin.Update(c.Request().Context(), c.Param("code"), input)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, coupon)
}

// DeactivateCoupon
// POST /api/v1/admin/coupons/:code/deactivate
func (h *CouponHandler) DeactivateCoupon(c echo.Context) error {
	coupon, err := h.admin.Deactivate(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, coupon)
}

type correctUsesRequest struct {
	UsesCount *int `json:"uses_count" validate:"required,min=0"`
}

// CorrectUses overrides the recorded use count
// POST /api/v1/admin/coupons/:code/uses
func (h *CouponHandler) CorrectUses(c echo.Context) error {
	var req correctUsesRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	coupon, err := h.admin.CorrectUses(c.Request().Context(), c.Param("code"), *req.UsesCount)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, coupon)
}

// ListRedemptions
// GET /api/v1/admin/coupons/:code/redemptions
func (h *CouponHandler) ListRedemptions(c echo.Context) error {
	redemptions, err := h.admin.ListRedemptions(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"redemptions": redemptions})
}

// UsageReport streams the coupon usage report
// GET /api/v1/admin/coupons/report.csv
func (h *CouponHandler) UsageReport(c echo.Context) error {
	filter, err := couponFilter(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="cupons.csv"`)
	res.WriteHeader(http.StatusOK)
	if err := h.admin.UsageReportCSV(c.Request().Context(), res, filter); err != nil {
		// Headers are already sent
		h.logger.Error("Failed to write coupon report", zap.Error(err))
	}
	return nil
}

func couponFilter(c echo.Context) (repository.CouponFilter, error) {
	filter := repository.CouponFilter{
		PlanRestriction: model.PlanRestriction(c.QueryParam("plan_restriction")),
		CodePrefix:      c.QueryParam("code_prefix"),
	}
	if raw := c.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, domainErrors.NewValidationError("active", "must be true or false")
		}
		filter.Active = &active
	}
	return filter, nil
}
