package http

import (
	"errors"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	appErrors "github.com/clinicore/billing-engine/pkg/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

var kindCodes = map[domainErrors.Kind]string{
	domainErrors.KindValidation:          appErrors.ErrInvalidArgument,
	domainErrors.KindDomainRule:          appErrors.ErrRuleViolation,
	domainErrors.KindProviderRejected:    appErrors.ErrProviderRejected,
	domainErrors.KindProviderUnavailable: appErrors.ErrProviderUnavailable,
	domainErrors.KindConcurrency:         appErrors.ErrConflict,
	domainErrors.KindNotFound:            appErrors.ErrNotFound,
	domainErrors.KindUnauthorized:        appErrors.ErrUnauthenticated,
	domainErrors.KindInternal:            appErrors.ErrInternal,
}

// toAppError classifies a use case error into a coded application error
// carrying the customer-facing message
func toAppError(err error) *appErrors.AppError {
	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	code, ok := kindCodes[domainErrors.KindOf(err)]
	if !ok {
		code = appErrors.ErrInternal
	}
	return appErrors.NewAppError(code, domainErrors.UserMessage(err), err)
}

// respondError writes err as JSON. Internal errors are logged with their
// cause; the rest are logged at warn level.
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	appErr := toAppError(err)
	kind := domainErrors.KindOf(err)
	body := ErrorResponse{
		Error: appErr.Message(),
		Code:  appErr.Code(),
		Kind:  string(kind),
	}
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		body.Field = validationErr.Field
		if validationErr.Err == nil {
			body.Error = validationErr.Error()
		}
	}

	fields := []zap.Field{
		zap.String("path", c.Request().URL.Path),
		zap.String("method", c.Request().Method),
		zap.String("kind", string(kind)),
	}
	if kind == domainErrors.KindInternal {
		appErrors.LogError(logger, appErr, "Request failed", fields...)
	} else {
		logger.Warn("Request rejected", append(fields, zap.Error(err))...)
	}
	return c.JSON(appErrors.ToHTTPStatus(appErr.Code()), body)
}

// bind decodes and validates the request body into req
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return domainErrors.NewValidationError("body", "malformed request body")
	}
	return c.Validate(req)
}
