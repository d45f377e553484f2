package errors

import "errors"

var (
	// ErrSubscriptionNotFound indicates that the specified subscription was not found
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSubscriptionCancelled is returned for commands that need a live subscription
	ErrSubscriptionCancelled = errors.New("subscription is cancelled")

	// ErrInvalidTransition is returned when a status change is not allowed
	ErrInvalidTransition = errors.New("invalid subscription status transition")

	// ErrPlanNotFound indicates that the plan id is not in the catalog
	ErrPlanNotFound = errors.New("plan not found")

	// ErrConcurrencyConflict is returned when a compare-and-swap update lost a race.
	// Callers should re-fetch and may retry once.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)
