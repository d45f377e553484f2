package http

import (
	"context"
	"net/http"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/middleware/auth"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	logger        *zap.Logger
	subscriptions *usecase.SubscriptionService
}

func NewSubscriptionHandler(logger *zap.Logger, subscriptions *usecase.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{logger: logger, subscriptions: subscriptions}
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// ListSubscriptions
// GET /api/v1/subscriptions
func (h *SubscriptionHandler) ListSubscriptions(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	subs, err := h.subscriptions.ListByCustomer(c.Request().Context(), user.UserID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"subscriptions": subs})
}

// GetSubscription
// GET /api/v1/subscriptions/:id
func (h *SubscriptionHandler) GetSubscription(c echo.Context) error {
	sub, err := h.owned(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// ListEvents returns the charge log
// GET /api/v1/subscriptions/:id/events
func (h *SubscriptionHandler) ListEvents(c echo.Context) error {
	sub, err := h.owned(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return h.writeEvents(c, sub.ID)
}

// CancelSubscription
// POST /api/v1/subscriptions/:id/cancel
func (h *SubscriptionHandler) CancelSubscription(c echo.Context) error {
	sub, err := h.owned(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return h.cancel(c, sub.ID, "customer request")
}

// PauseSubscription
// POST /api/v1/subscriptions/:id/pause
func (h *SubscriptionHandler) PauseSubscription(c echo.Context) error {
	return h.mutate(c, h.subscriptions.Pause)
}

// ResumeSubscription
// POST /api/v1/subscriptions/:id/resume
func (h *SubscriptionHandler) ResumeSubscription(c echo.Context) error {
	return h.mutate(c, h.subscriptions.Resume)
}

// AdminListEvents
// GET /api/v1/admin/subscriptions/:id/events
func (h *SubscriptionHandler) AdminListEvents(c echo.Context) error {
	id, err := subscriptionID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return h.writeEvents(c, id)
}

// AdminCancelSubscription
// POST /api/v1/admin/subscriptions/:id/cancel
func (h *SubscriptionHandler) AdminCancelSubscription(c echo.Context) error {
	id, err := subscriptionID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return h.cancel(c, id, "cancelled by operator")
}

func (h *SubscriptionHandler) cancel(c echo.Context, id uuid.UUID, defaultReason string) error {
	var req cancelRequest
	if c.Request().ContentLength > 0 {
		if err := bind(c, &req); err != nil {
			return respondError(c, h.logger, err)
		}
	}
	if req.Reason == "" {
		req.Reason = defaultReason
	}

	sub, err := h.subscriptions.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) mutate(c echo.Context, fn func(context.Context, uuid.UUID) (*model.Subscription, error)) error {
	sub, err := h.owned(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	updated, err := fn(c.Request().Context(), sub.ID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *SubscriptionHandler) writeEvents(c echo.Context, id uuid.UUID) error {
	events, err := h.subscriptions.ListEvents(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}

// owned loads the subscription in the path if it belongs to the caller.
// Other customers' subscriptions are reported as not found.
func (h *SubscriptionHandler) owned(c echo.Context) (*model.Subscription, error) {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return nil, domainErrors.ErrSubscriptionNotFound
	}
	id, err := subscriptionID(c)
	if err != nil {
		return nil, err
	}
	sub, err := h.subscriptions.Get(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if sub.CustomerID != user.UserID {
		h.logger.Warn("Subscription access denied",
			zap.String("subscription_id", id.String()),
			zap.String("user_id", user.UserID))
		return nil, domainErrors.ErrSubscriptionNotFound
	}
	return sub, nil
}

func subscriptionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, domainErrors.NewValidationError("id", "must be a valid UUID")
	}
	return id, nil
}
