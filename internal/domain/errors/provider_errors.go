package errors

import "errors"

var (
	// ErrProviderRejected is a terminal business failure (bad card, insufficient funds).
	ErrProviderRejected = errors.New("payment provider rejected the request")

	// ErrProviderUnavailable covers network failures and 5xx responses. Retried once.
	ErrProviderUnavailable = errors.New("payment provider unavailable")

	// ErrInvalidCard is returned by client-side card validation before any provider call.
	ErrInvalidCard = errors.New("invalid card")

	// ErrUnsupportedProvider is returned for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported payment provider")

	// ErrInvalidSignature is returned when a webhook signature does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
