// Package keystore connects accounts stored as go-ethereum encrypted key files.
package keystore

import (
	"context"
	"fmt"
	"os"

	ethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/connectors"
)

// ID is the connector identifier.
const ID = "keystore"

// PassphraseFunc supplies the passphrase for the key file.
type PassphraseFunc func() (string, error)

// Keystore implements connectors.Connector over a V3 key file.
type Keystore struct {
	path       string
	passphrase PassphraseFunc
}

// New creates a keystore connector for the key file at path.
func New(path string, passphrase PassphraseFunc) *Keystore {
	return &Keystore{path: path, passphrase: passphrase}
}

// ID returns the connector identifier.
func (k *Keystore) ID() string {
	return ID
}

// Name returns a human-readable label.
func (k *Keystore) Name() string {
	return "Keystore file"
}

// Available reports whether the key file exists.
func (k *Keystore) Available() bool {
	if k.path == "" {
		return false
	}
	_, err := os.Stat(k.path)
	return err == nil
}

// Connect decrypts the key file.
func (k *Keystore) Connect(ctx context.Context) (chain.Signer, error) {
	if !k.Available() {
		return nil, fmt.Errorf("%w: no key file at %q", connectors.ErrUnavailable, k.path)
	}
	data, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	pass := ""
	if k.passphrase != nil {
		if pass, err = k.passphrase(); err != nil {
			return nil, fmt.Errorf("passphrase: %w", err)
		}
	}
	key, err := ethkeystore.DecryptKey(data, pass)
	if err != nil {
		return nil, fmt.Errorf("decrypt key file: %w", err)
	}
	return connectors.NewKeyAccount(key.PrivateKey), nil
}
