package chain_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/config"
	"github.com/fentz26/tasktrack/internal/connectors/devkey"
	"github.com/fentz26/tasktrack/internal/contract"
	"github.com/fentz26/tasktrack/internal/devchain"
	"github.com/fentz26/tasktrack/internal/store"
)

func newDevchain(t *testing.T) *devchain.Node {
	t.Helper()
	node, err := devchain.Open(devchain.Config{
		DBPath:    store.MemoryPath,
		ChainID:   1337,
		Contract:  config.DevchainContract,
		BlockTime: time.Hour,
		Instant:   true,
	})
	require.NoError(t, err)
	node.Start()
	t.Cleanup(func() { node.Close() })
	return node
}

type rejectingSigner struct{ chain.Signer }

func (rejectingSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return nil, chain.ErrSignatureRejected
}

func TestRPCClient_SendAndWait(t *testing.T) {
	node := newDevchain(t)
	client := chain.NewRPCClient(node.DialInProc(), chain.WithPollInterval(5*time.Millisecond))
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := client.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1337), id.Int64())

	signer, err := devkey.New(0).Connect(ctx)
	require.NoError(t, err)
	data, err := contract.ABI().Pack(contract.MethodCreateTask, "buy milk")
	require.NoError(t, err)

	hash, err := client.Send(ctx, signer, config.DevchainContract, data)
	require.NoError(t, err)
	receipt, err := client.WaitReceipt(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, hash, receipt.TxHash)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	// Nonces advance across sends.
	hash2, err := client.Send(ctx, signer, config.DevchainContract, data)
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
	_, err = client.WaitReceipt(ctx, hash2)
	require.NoError(t, err)
}

func TestRPCClient_SignatureRejected(t *testing.T) {
	node := newDevchain(t)
	client := chain.NewRPCClient(node.DialInProc())
	defer client.Close()
	ctx := context.Background()

	signer, err := devkey.New(0).Connect(ctx)
	require.NoError(t, err)
	data, err := contract.ABI().Pack(contract.MethodCreateTask, "x")
	require.NoError(t, err)

	_, err = client.Send(ctx, rejectingSigner{signer}, config.DevchainContract, data)
	assert.ErrorIs(t, err, chain.ErrSignatureRejected)

	n, err := node.Backend.NonceAt(ctx, signer.Address(), true)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing reached the pool")
}

func TestRPCClient_WrongChain(t *testing.T) {
	node := newDevchain(t)
	client := chain.NewRPCClient(node.DialInProc(), chain.WithExpectedChainID(1946))
	defer client.Close()
	ctx := context.Background()

	signer, err := devkey.New(0).Connect(ctx)
	require.NoError(t, err)

	_, err = client.Send(ctx, signer, config.DevchainContract, []byte{0x01})
	assert.ErrorIs(t, err, chain.ErrWrongChain)
}

func TestRPCClient_WaitReceiptHonoursContext(t *testing.T) {
	node := newDevchain(t)
	client := chain.NewRPCClient(node.DialInProc(), chain.WithPollInterval(5*time.Millisecond))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.WaitReceipt(ctx, common.HexToHash("0x1234"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRPCClient_CallWithoutSender(t *testing.T) {
	node := newDevchain(t)
	client := chain.NewRPCClient(node.DialInProc())
	defer client.Close()

	user := common.HexToAddress("0xABCD000000000000000000000000000000001234")
	data, err := contract.ABI().Pack(contract.MethodGetCompletedCount, user)
	require.NoError(t, err)

	out, err := client.Call(context.Background(), nil, config.DevchainContract, data)
	require.NoError(t, err)
	values, err := contract.ABI().Unpack(contract.MethodGetCompletedCount, out)
	require.NoError(t, err)
	assert.Equal(t, int64(0), values[0].(*big.Int).Int64())
}
