package contract

import "errors"

// Sentinel errors for gateway operations.
var (
	ErrEmptyDescription  = errors.New("task description is empty")
	ErrInvalidIndex      = errors.New("invalid task index")
	ErrNoAccount         = errors.New("no connected account")
	ErrMalformedResponse = errors.New("malformed contract response")
)
