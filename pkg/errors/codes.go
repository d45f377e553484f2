package errors

// Error codes shared by HTTP and gRPC surfaces.
const (
	ErrInternal            = "INTERNAL"
	ErrNotFound            = "NOT_FOUND"
	ErrInvalidArgument     = "INVALID_ARGUMENT"
	ErrUnauthenticated     = "UNAUTHENTICATED"
	ErrUnauthorized        = "UNAUTHORIZED"
	ErrConflict            = "CONFLICT"
	ErrTimeout             = "TIMEOUT"
	ErrNotImplemented      = "NOT_IMPLEMENTED"
	ErrRuleViolation       = "DOMAIN_RULE_VIOLATION"
	ErrProviderRejected    = "PROVIDER_REJECTED"
	ErrProviderUnavailable = "PROVIDER_UNAVAILABLE"
)
