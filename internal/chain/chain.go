// Package chain is the client-side view of an Ethereum-compatible network:
// read calls, signed transaction submission and receipt resolution.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer is a connected wallet account able to sign transactions.
type Signer interface {
	// Address returns the account address.
	Address() common.Address

	// SignTx signs tx for chainID. Implementations may block on user approval
	// and return ErrSignatureRejected.
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Client defines the chain operations the contract gateway depends on.
type Client interface {
	// ChainID returns the network chain id.
	ChainID(ctx context.Context) (*big.Int, error)

	// Call executes a read-only call against the latest block.
	Call(ctx context.Context, from *common.Address, to common.Address, data []byte) ([]byte, error)

	// Send builds, signs and broadcasts a transaction. It returns once the
	// network has accepted the transaction.
	Send(ctx context.Context, signer Signer, to common.Address, data []byte) (common.Hash, error)

	// WaitReceipt blocks until the transaction is included or ctx ends.
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	// Close releases the underlying connection.
	Close()
}
