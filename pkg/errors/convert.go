package errors

// CodePair maps an error code to its HTTP status and gRPC code.
type CodePair struct {
	HTTPStatus int
	GRPCCode   int
}

var codeMapping = map[string]CodePair{
	ErrInternal:            {500, 13}, // INTERNAL
	ErrNotFound:            {404, 5},  // NOT_FOUND
	ErrInvalidArgument:     {400, 3},  // INVALID_ARGUMENT
	ErrUnauthenticated:     {401, 16}, // UNAUTHENTICATED
	ErrUnauthorized:        {403, 7},  // PERMISSION_DENIED
	ErrConflict:            {409, 10}, // ABORTED
	ErrTimeout:             {504, 4},  // DEADLINE_EXCEEDED
	ErrNotImplemented:      {501, 12}, // UNIMPLEMENTED
	ErrRuleViolation:       {422, 9},  // FAILED_PRECONDITION
	ErrProviderRejected:    {402, 9},  // FAILED_PRECONDITION
	ErrProviderUnavailable: {503, 14}, // UNAVAILABLE
}

// GetCodeMapping returns the HTTP status and gRPC code for an error code.
// Unknown codes map to internal.
func GetCodeMapping(code string) (int, int) {
	if pair, ok := codeMapping[code]; ok {
		return pair.HTTPStatus, pair.GRPCCode
	}
	return 500, 13
}
