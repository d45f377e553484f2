package http

import (
	"net/http"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/clinicore/billing-engine/internal/middleware/auth"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	logger   *zap.Logger
	checkout *usecase.CheckoutService
}

func NewCheckoutHandler(logger *zap.Logger, checkout *usecase.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{logger: logger, checkout: checkout}
}

type quoteRequest struct {
	PlanID     string               `json:"plan_id" validate:"required,max=20"`
	Cadence    model.BillingCadence `json:"billing_cadence" validate:"required,oneof=monthly annual"`
	CouponCode string               `json:"coupon_code" validate:"omitempty,max=32"`
}

func (r quoteRequest) toUsecase() usecase.QuoteRequest {
	return usecase.QuoteRequest{PlanID: r.PlanID, Cadence: r.Cadence, CouponCode: r.CouponCode}
}

type checkoutRequest struct {
	PlanID     string               `json:"plan_id" validate:"required,max=20"`
	Cadence    model.BillingCadence `json:"billing_cadence" validate:"required,oneof=monthly annual"`
	CouponCode string               `json:"coupon_code" validate:"omitempty,max=32"`
	Provider   string               `json:"provider" validate:"omitempty,oneof=mercadopago pagseguro"`
	// Email overrides the token email when the token carries none
	Email   string               `json:"email" validate:"omitempty,email"`
	Name    string               `json:"name" validate:"max=200"`
	TaxID   string               `json:"tax_id" validate:"omitempty,numeric,len=11"`
	Phone   string               `json:"phone" validate:"omitempty,max=20"`
	Payment usecase.PaymentInput `json:"payment"`
}

// Quote previews the schedule and first charge of a checkout
// POST /api/v1/checkout/quote
func (h *CheckoutHandler) Quote(c echo.Context) error {
	var req quoteRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	quote, err := h.checkout.Quote(c.Request().Context(), req.toUsecase())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// CreateSubscription runs the checkout for the authenticated customer
// POST /api/v1/checkout
func (h *CheckoutHandler) CreateSubscription(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err // RequireAuth already returns the JSON error response
	}

	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	email := user.Email
	if email == "" {
		email = req.Email
	}
	name := req.Name
	if name == "" {
		name = user.Name
	}

	h.logger.Info("Checkout requested",
		zap.String("user_id", user.UserID),
		zap.String("plan_id", req.PlanID),
		zap.String("billing_cadence", string(req.Cadence)),
		zap.String("provider", req.Provider),
		zap.String("payment_method", string(req.Payment.Kind)),
		zap.Bool("with_coupon", req.CouponCode != ""))

	result, err := h.checkout.Checkout(c.Request().Context(), usecase.CheckoutRequest{
		QuoteRequest: usecase.QuoteRequest{PlanID: req.PlanID, Cadence: req.Cadence, CouponCode: req.CouponCode},
		Provider:     req.Provider,
		Customer: provider.Customer{
			ID:    user.UserID,
			Email: email,
			Name:  name,
			TaxID: req.TaxID,
		},
		Phone:   req.Phone,
		Payment: req.Payment,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, result)
}
