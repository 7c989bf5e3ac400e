package analyses

import "errors"

var (
	ErrNotFound = errors.New("analysis not found")
	// ErrTerminal is returned when a write would replace a completed or errored job.
	ErrTerminal = errors.New("analysis already finished")
	ErrInvalid  = errors.New("invalid submission")
)

const (
	ErrorCodeValidation   = "validation_error"
	ErrorCodeNotFound     = "not_found"
	ErrorCodeLimitReached = "limit_reached"
	ErrorCodeRateLimited  = "rate_limited"
	ErrorCodeTooLarge     = "file_too_large"
	ErrorCodeInternal     = "internal_error"
)
