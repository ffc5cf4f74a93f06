// Package injected provides the default wallet connector: a private key
// injected into the process environment.
package injected

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/connectors"
)

// ID is the connector identifier.
const ID = "injected"

// EnvKey holds the hex-encoded private key.
const EnvKey = "TASKTRACK_PRIVATE_KEY"

// Injected implements connectors.Connector over an environment variable.
type Injected struct {
	lookup func(string) (string, bool)
}

// New creates an injected connector reading the process environment.
func New() *Injected {
	return NewWithLookup(os.LookupEnv)
}

// NewWithLookup creates an injected connector with a custom variable lookup.
func NewWithLookup(lookup func(string) (string, bool)) *Injected {
	return &Injected{lookup: lookup}
}

// ID returns the connector identifier.
func (i *Injected) ID() string {
	return ID
}

// Name returns a human-readable label.
func (i *Injected) Name() string {
	return "Injected key (" + EnvKey + ")"
}

// Available reports whether the key variable is set.
func (i *Injected) Available() bool {
	v, ok := i.lookup(EnvKey)
	return ok && strings.TrimSpace(v) != ""
}

// Connect parses the injected key.
func (i *Injected) Connect(ctx context.Context) (chain.Signer, error) {
	v, ok := i.lookup(EnvKey)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, fmt.Errorf("%w: %s is not set", connectors.ErrUnavailable, EnvKey)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(v), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", EnvKey, err)
	}
	return connectors.NewKeyAccount(key), nil
}
