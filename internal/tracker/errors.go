package tracker

import "errors"

// Sentinel errors for controller intents.
var (
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrNotConnected       = errors.New("wallet not connected")
	ErrClosed             = errors.New("controller closed")
)
