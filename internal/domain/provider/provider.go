// Package provider defines the contract every payment gateway adapter
// implements. Provider wire formats never leave the adapter.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/schedule"
	"github.com/shopspring/decimal"
)

// Gateway abstracts a recurring-payment provider
type Gateway interface {
	// CreateSubscription creates the remote subscription with the first
	// non-zero charge of the schedule.
	CreateSubscription(ctx context.Context, req *CreateSubscriptionRequest) (*CreateSubscriptionResponse, error)

	// CancelSubscription is idempotent: an already cancelled subscription is not an error.
	CancelSubscription(ctx context.Context, providerSubscriptionID string) error

	PauseSubscription(ctx context.Context, providerSubscriptionID string) error
	ResumeSubscription(ctx context.Context, providerSubscriptionID string) error

	// UpdateChargeAmount sets the amount of the next recurring charge.
	// Providers that carry the whole discount ramp treat it as a no-op.
	UpdateChargeAmount(ctx context.Context, providerSubscriptionID string, amount decimal.Decimal) error

	// TokenizeCard validates card locally and fails with ErrInvalidCard
	// before any provider call.
	TokenizeCard(ctx context.Context, card *CardFields) (*CardToken, error)

	// TranslateWebhook maps a raw payload to a DomainEvent. Unmapped event
	// types yield EventUnknown; only unreadable payloads return an error.
	TranslateWebhook(payload []byte) (*DomainEvent, error)

	// VerifySignature checks the webhook signature header against payload
	VerifySignature(payload []byte, signature string) bool

	GetProviderName() string
}

// ProviderType represents the type of payment provider
type ProviderType string

const (
	ProviderTypeMercadoPago ProviderType = "mercadopago"
	ProviderTypePagSeguro   ProviderType = "pagseguro"
)

// Customer is the payer as supplied by the identity provider
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	// TaxID is the payer CPF, digits only. Required for boleto.
	TaxID string `json:"tax_id,omitempty"`
}

// CreateSubscriptionRequest is the provider-agnostic creation request
type CreateSubscriptionRequest struct {
	// SubscriptionID is our id, sent as the provider's external reference
	SubscriptionID    string
	Customer          Customer
	Plan              *model.Plan
	Cadence           model.BillingCadence
	FirstChargeDate   time.Time
	FirstChargeAmount decimal.Decimal
	PaymentMethod     PaymentMethod
	// Schedule is the canonical schedule. Adapters translate it into their
	// own wire format.
	Schedule *schedule.Schedule
}

// CreateSubscriptionResponse is the result of a remote subscription creation
type CreateSubscriptionResponse struct {
	ProviderSubscriptionID string                 `json:"provider_subscription_id"`
	Status                 string                 `json:"status"`
	// CheckoutURL is where boleto or pix payers complete payment
	CheckoutURL  string                 `json:"checkout_url,omitempty"`
	ProviderData map[string]interface{} `json:"provider_data,omitempty"`
}

// ProviderError is a failed provider call. It unwraps to
// ErrProviderUnavailable for network failures, 429 and 5xx responses and to
// ErrProviderRejected otherwise.
type ProviderError struct {
	Provider   string `json:"provider"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Details    string `json:"details,omitempty"`
	// Temporary marks failures where no response was received
	Temporary bool `json:"temporary,omitempty"`
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unavailable reports whether the call may succeed if retried
func (e *ProviderError) Unavailable() bool {
	return e.Temporary || e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

func (e *ProviderError) Unwrap() error {
	if e.Unavailable() {
		return domainErrors.ErrProviderUnavailable
	}
	return domainErrors.ErrProviderRejected
}

// IsUnavailable reports whether err is a retryable provider failure
func IsUnavailable(err error) bool {
	return errors.Is(err, domainErrors.ErrProviderUnavailable)
}
