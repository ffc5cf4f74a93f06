package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/connectors"
)

var mockAddress = common.HexToAddress("0xABCD000000000000000000000000000000001234")

type mockAccount struct{ signed int }

func (m *mockAccount) Address() common.Address { return mockAddress }

func (m *mockAccount) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	m.signed++
	return tx, nil
}

type mockConnector struct {
	id        string
	available bool
	account   *mockAccount
}

func (m *mockConnector) ID() string      { return m.id }
func (m *mockConnector) Name() string    { return "mock" }
func (m *mockConnector) Available() bool { return m.available }
func (m *mockConnector) Connect(ctx context.Context) (chain.Signer, error) {
	return m.account, nil
}

func newWallet(t *testing.T, conns ...connectors.Connector) *Wallet {
	t.Helper()
	reg := connectors.NewRegistry()
	for _, c := range conns {
		reg.Register(c)
	}
	return New(reg)
}

func TestConnectDefault(t *testing.T) {
	w := newWallet(t, &mockConnector{id: "injected", available: true, account: &mockAccount{}})

	assert.False(t, w.IsConnected())
	assert.Nil(t, w.Address())

	addr, err := w.ConnectDefault(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mockAddress, addr)
	assert.True(t, w.IsConnected())
	require.NotNil(t, w.Address())
	assert.Equal(t, mockAddress, *w.Address())
	assert.Equal(t, "injected", w.ConnectorID())

	w.Disconnect()
	assert.False(t, w.IsConnected())
	assert.Nil(t, w.Address())
	_, ok := w.Signer()
	assert.False(t, ok)
}

func TestConnectDefault_NoInjected(t *testing.T) {
	w := newWallet(t, &mockConnector{id: "keystore", available: true, account: &mockAccount{}})

	_, err := w.ConnectDefault(context.Background())
	assert.ErrorIs(t, err, ErrNoConnector)
	assert.False(t, w.IsConnected(), "no fallback to other connectors")
}

func TestConnect_Unavailable(t *testing.T) {
	w := newWallet(t, &mockConnector{id: "injected", available: false, account: &mockAccount{}})

	_, err := w.Connect(context.Background(), "injected")
	assert.ErrorIs(t, err, ErrNoConnector)
}

func TestSigner_Approver(t *testing.T) {
	acct := &mockAccount{}
	w := newWallet(t, &mockConnector{id: "injected", available: true, account: acct})
	_, err := w.ConnectDefault(context.Background())
	require.NoError(t, err)

	var seen SignRequest
	w.SetApprover(func(ctx context.Context, req SignRequest) error {
		seen = req
		return chain.ErrSignatureRejected
	})

	signer, ok := w.Signer()
	require.True(t, ok)

	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	tx := types.NewTx(&types.LegacyTx{Nonce: 4, To: &to, Data: []byte{1, 2, 3}})
	_, err = signer.SignTx(context.Background(), tx, big.NewInt(1337))
	assert.ErrorIs(t, err, chain.ErrSignatureRejected)
	assert.Zero(t, acct.signed)
	assert.Equal(t, uint64(4), seen.Nonce)
	assert.Equal(t, to, seen.To)
	assert.Equal(t, mockAddress, seen.From)

	w.SetApprover(func(ctx context.Context, req SignRequest) error { return nil })
	signer, _ = w.Signer()
	_, err = signer.SignTx(context.Background(), tx, big.NewInt(1337))
	require.NoError(t, err)
	assert.Equal(t, 1, acct.signed)
}
