package chain

import "errors"

// Sentinel errors for chain operations.
var (
	ErrSignatureRejected = errors.New("signature rejected by user")
	ErrWrongChain        = errors.New("connected to unexpected chain")
	ErrReverted          = errors.New("transaction reverted")
)
