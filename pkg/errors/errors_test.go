package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCodeMapping(t *testing.T) {
	tests := []struct {
		code       string
		httpStatus int
		grpcCode   int
	}{
		{ErrInvalidArgument, http.StatusBadRequest, 3},
		{ErrRuleViolation, http.StatusUnprocessableEntity, 9},
		{ErrProviderRejected, http.StatusPaymentRequired, 9},
		{ErrProviderUnavailable, http.StatusServiceUnavailable, 14},
		{ErrConflict, http.StatusConflict, 10},
		{"SOMETHING_ELSE", http.StatusInternalServerError, 13},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			httpStatus, grpcCode := GetCodeMapping(tt.code)
			assert.Equal(t, tt.httpStatus, httpStatus)
			assert.Equal(t, tt.grpcCode, grpcCode)
		})
	}
}

func TestWrapKeepsCode(t *testing.T) {
	inner := NewAppError(ErrNotFound, "coupon not found", nil)
	wrapped := Wrap(inner, "validate coupon")

	assert.Equal(t, ErrNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, inner))
	assert.Nil(t, Wrap(nil, "noop"))
	assert.Equal(t, ErrInternal, CodeOf(New("plain")))
}

func TestToHTTPError(t *testing.T) {
	err := ToHTTPError(NewAppError(ErrProviderUnavailable, "provider down", New("timeout")))
	assert.Equal(t, http.StatusServiceUnavailable, err.Code)
	assert.Equal(t, "provider down", err.Message)

	err = ToHTTPError(New("boom"))
	assert.Equal(t, http.StatusInternalServerError, err.Code)
}
