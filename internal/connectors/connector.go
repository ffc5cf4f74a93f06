// Package connectors defines the wallet connector interface for tasktrack.
package connectors

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fentz26/tasktrack/internal/chain"
)

// ErrUnavailable is returned when a connector has nothing to connect to.
var ErrUnavailable = errors.New("connector unavailable")

// Connector yields a signing account from some key source.
type Connector interface {
	// ID returns the connector identifier, e.g. "injected".
	ID() string

	// Name returns a human-readable label.
	Name() string

	// Available reports whether Connect can succeed without further setup.
	Available() bool

	// Connect opens the account.
	Connect(ctx context.Context) (chain.Signer, error)
}

// Registry holds the connectors known to the wallet.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds or replaces a connector.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.ID()] = c
}

// Get returns the connector with id.
func (r *Registry) Get(id string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[id]
	return c, ok
}

// List returns all connectors sorted by id.
func (r *Registry) List() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connector, 0, len(r.connectors))
	for _, c := range r.connectors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// KeyAccount signs with an in-memory private key.
type KeyAccount struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeyAccount wraps key as a chain.Signer.
func NewKeyAccount(key *ecdsa.PrivateKey) *KeyAccount {
	return &KeyAccount{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address returns the account address.
func (a *KeyAccount) Address() common.Address {
	return a.address
}

// SignTx signs tx with the latest signer for chainID.
func (a *KeyAccount) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
}
