package http

import (
	"io"
	"net/http"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// maxWebhookBody bounds a single delivery
const maxWebhookBody = 1 << 20

var signatureHeaders = []string{"X-Signature", "X-Hub-Signature-256"}

type WebhookHandler struct {
	logger   *zap.Logger
	webhooks *usecase.WebhookService
}

func NewWebhookHandler(logger *zap.Logger, webhooks *usecase.WebhookService) *WebhookHandler {
	return &WebhookHandler{logger: logger, webhooks: webhooks}
}

// HandleWebhook ingests one provider delivery. Processing failures answer
// with an error status so the provider redelivers; the stored event is then
// processed again.
// POST /webhooks/:provider
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		return respondError(c, h.logger, domainErrors.NewValidationError("payload", "unreadable body"))
	}

	var signature string
	for _, header := range signatureHeaders {
		if signature = c.Request().Header.Get(header); signature != "" {
			break
		}
	}

	result, err := h.webhooks.Ingest(c.Request().Context(), c.Param("provider"), body, signature)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, result)
}
