package connectors

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fentz26/tasktrack/internal/chain"
)

type stubConnector struct{ id string }

func (s stubConnector) ID() string                                        { return s.id }
func (s stubConnector) Name() string                                      { return s.id }
func (s stubConnector) Available() bool                                   { return true }
func (s stubConnector) Connect(ctx context.Context) (chain.Signer, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(stubConnector{"keystore"})
	r.Register(stubConnector{"injected"})

	if _, ok := r.Get("injected"); !ok {
		t.Error("Expected injected connector to be registered")
	}
	if _, ok := r.Get("walletconnect"); ok {
		t.Error("Expected unknown connector lookup to fail")
	}

	list := r.List()
	if len(list) != 2 || list[0].ID() != "injected" || list[1].ID() != "keystore" {
		t.Errorf("Expected sorted [injected keystore], got %v", list)
	}
}

func TestKeyAccount_SignTx(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	acct := NewKeyAccount(key)

	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, GasPrice: big.NewInt(1), To: &to})
	chainID := big.NewInt(1337)

	signed, err := acct.SignTx(context.Background(), tx, chainID)
	if err != nil {
		t.Fatalf("SignTx failed: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("Sender failed: %v", err)
	}
	if sender != acct.Address() {
		t.Errorf("Expected sender %s, got %s", acct.Address().Hex(), sender.Hex())
	}
}
