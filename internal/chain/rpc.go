package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultPollInterval is how often WaitReceipt asks for a receipt.
const DefaultPollInterval = time.Second

// gasHeadroom is added on top of the estimate, in percent.
const gasHeadroom = 20

// RPCClient implements Client over go-ethereum's ethclient.
type RPCClient struct {
	eth          *ethclient.Client
	pollInterval time.Duration
	expectChain  *big.Int
	log          log.Logger

	mu      sync.Mutex
	chainID *big.Int
}

// Option configures an RPCClient.
type Option func(*RPCClient)

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *RPCClient) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithExpectedChainID makes Send refuse to sign for any other chain.
func WithExpectedChainID(id uint64) Option {
	return func(c *RPCClient) {
		if id != 0 {
			c.expectChain = new(big.Int).SetUint64(id)
		}
	}
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, url string, opts ...Option) (*RPCClient, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewRPCClient(rc, opts...), nil
}

// NewRPCClient wraps an existing rpc connection, e.g. one from rpc.DialInProc.
func NewRPCClient(rc *rpc.Client, opts ...Option) *RPCClient {
	c := &RPCClient{
		eth:          ethclient.NewClient(rc),
		pollInterval: DefaultPollInterval,
		log:          log.New("component", "chain"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainID returns the chain id, cached after the first successful call.
func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	c.chainID = id
	return new(big.Int).Set(id), nil
}

// Call executes eth_call against the latest block.
func (c *RPCClient) Call(ctx context.Context, from *common.Address, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	if from != nil {
		msg.From = *from
	}
	out, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// Send builds a legacy transaction, asks signer to sign it and broadcasts it.
func (c *RPCClient) Send(ctx context.Context, signer Signer, to common.Address, data []byte) (common.Hash, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	if c.expectChain != nil && c.expectChain.Cmp(chainID) != 0 {
		return common.Hash{}, fmt.Errorf("%w: have %s, want %s", ErrWrongChain, chainID, c.expectChain)
	}

	from := signer.Address()
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasHeadroom / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Data:     data,
	})
	signed, err := signer.SignTx(ctx, tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	c.log.Debug("Transaction sent", "hash", signed.Hash(), "from", from, "nonce", nonce, "gas", gas)
	return signed.Hash(), nil
}

// WaitReceipt polls for the receipt of hash until it is available.
func (c *RPCClient) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.log.Trace("Receipt retrieval failed", "hash", hash, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the rpc connection.
func (c *RPCClient) Close() {
	c.eth.Close()
}
