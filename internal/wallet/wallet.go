// Package wallet tracks the connected account and gates signing behind
// user approval.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/connectors"
)

// DefaultConnectorID is the connector tried by ConnectDefault.
const DefaultConnectorID = "injected"

// ErrNoConnector is returned when the requested connector is missing or unusable.
var ErrNoConnector = errors.New("no wallet connector found")

// SignRequest describes a transaction awaiting the user's signature.
type SignRequest struct {
	From    common.Address
	To      common.Address
	Nonce   uint64
	Data    []byte
	ChainID *big.Int
}

// Approver decides whether a transaction may be signed. Returning an error
// rejects the signature; chain.ErrSignatureRejected is the conventional value.
type Approver func(ctx context.Context, req SignRequest) error

// Wallet holds the connection state.
type Wallet struct {
	registry *connectors.Registry
	approver Approver
	log      log.Logger

	mu          sync.RWMutex
	account     chain.Signer
	connectorID string
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithApprover installs a signature approver.
func WithApprover(a Approver) Option {
	return func(w *Wallet) { w.approver = a }
}

// New creates a disconnected wallet over registry.
func New(registry *connectors.Registry, opts ...Option) *Wallet {
	w := &Wallet{
		registry: registry,
		log:      log.New("component", "wallet"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetApprover replaces the signature approver.
func (w *Wallet) SetApprover(a Approver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.approver = a
}

// Connect opens the account behind connectorID.
func (w *Wallet) Connect(ctx context.Context, connectorID string) (common.Address, error) {
	c, ok := w.registry.Get(connectorID)
	if !ok || !c.Available() {
		w.log.Error("No wallet connector found", "connector", connectorID)
		return common.Address{}, fmt.Errorf("%w: %q", ErrNoConnector, connectorID)
	}

	account, err := c.Connect(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("connect %s: %w", connectorID, err)
	}

	w.mu.Lock()
	w.account = account
	w.connectorID = connectorID
	w.mu.Unlock()

	w.log.Info("Wallet connected", "connector", connectorID, "address", account.Address())
	return account.Address(), nil
}

// ConnectDefault connects through the injected connector. There is no
// fallback: if it is unavailable the wallet stays disconnected.
func (w *Wallet) ConnectDefault(ctx context.Context) (common.Address, error) {
	return w.Connect(ctx, DefaultConnectorID)
}

// Disconnect forgets the current account.
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.account != nil {
		w.log.Info("Wallet disconnected", "address", w.account.Address())
	}
	w.account = nil
	w.connectorID = ""
}

// Address returns the connected address, or nil when disconnected.
func (w *Wallet) Address() *common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.account == nil {
		return nil
	}
	addr := w.account.Address()
	return &addr
}

// IsConnected reports whether an account is connected.
func (w *Wallet) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.account != nil
}

// ConnectorID returns the id of the connector in use, or "".
func (w *Wallet) ConnectorID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connectorID
}

// Signer returns the connected account wrapped with the approver.
func (w *Wallet) Signer() (chain.Signer, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.account == nil {
		return nil, false
	}
	return &approvingSigner{inner: w.account, approver: w.approver}, true
}

type approvingSigner struct {
	inner    chain.Signer
	approver Approver
}

func (s *approvingSigner) Address() common.Address {
	return s.inner.Address()
}

func (s *approvingSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if s.approver != nil {
		req := SignRequest{
			From:    s.inner.Address(),
			Nonce:   tx.Nonce(),
			Data:    tx.Data(),
			ChainID: chainID,
		}
		if to := tx.To(); to != nil {
			req.To = *to
		}
		if err := s.approver(ctx, req); err != nil {
			return nil, err
		}
	}
	return s.inner.SignTx(ctx, tx, chainID)
}
