// Package devkey provides deterministic throwaway accounts for the devchain.
package devkey

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/connectors"
)

// ID is the connector identifier.
const ID = "dev"

// DevKey implements connectors.Connector with a key derived from a seed index.
// It must never be used against a public network.
type DevKey struct {
	index int
}

// New creates a dev connector for account index.
func New(index int) *DevKey {
	return &DevKey{index: index}
}

// ID returns the connector identifier.
func (d *DevKey) ID() string {
	return ID
}

// Name returns a human-readable label.
func (d *DevKey) Name() string {
	return fmt.Sprintf("Devchain account #%d", d.index)
}

// Available always reports true.
func (d *DevKey) Available() bool {
	return true
}

// Connect derives the account key.
func (d *DevKey) Connect(ctx context.Context) (chain.Signer, error) {
	seed := crypto.Keccak256([]byte(fmt.Sprintf("tasktrack devchain account %d", d.index)))
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("derive dev key: %w", err)
	}
	return connectors.NewKeyAccount(key), nil
}
