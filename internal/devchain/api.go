package devchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// ClientVersion is reported by web3_clientVersion and /health.
const ClientVersion = "tasktrack-devchain/v1"

// CallArgs is the transaction-call object of eth_call and eth_estimateGas.
// Both "input" and the older "data" field are accepted.
type CallArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Data     *hexutil.Bytes  `json:"data"`
	Input    *hexutil.Bytes  `json:"input"`
}

func (a CallArgs) from() common.Address {
	if a.From == nil {
		return common.Address{}
	}
	return *a.From
}

func (a CallArgs) data() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

// ethAPI serves the eth_ namespace.
type ethAPI struct {
	b *Backend
}

func (api *ethAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(api.b.ChainID())
}

func (api *ethAPI) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	n, err := api.b.BlockNumber(ctx)
	return hexutil.Uint64(n), err
}

func (api *ethAPI) GasPrice() *hexutil.Big {
	return (*hexutil.Big)(api.b.GasPrice())
}

// GetTransactionCount returns the next nonce. Any block tag other than
// "pending" reads mined state.
func (api *ethAPI) GetTransactionCount(ctx context.Context, account common.Address, block *string) (hexutil.Uint64, error) {
	pending := block != nil && *block == "pending"
	n, err := api.b.NonceAt(ctx, account, pending)
	return hexutil.Uint64(n), err
}

func (api *ethAPI) Call(ctx context.Context, args CallArgs, block *string) (hexutil.Bytes, error) {
	return api.b.Call(ctx, args.from(), args.To, args.data())
}

func (api *ethAPI) EstimateGas(ctx context.Context, args CallArgs, block *string) (hexutil.Uint64, error) {
	gas, err := api.b.EstimateGas(ctx, args.from(), args.To, args.data())
	return hexutil.Uint64(gas), err
}

func (api *ethAPI) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	return api.b.SendRawTransaction(ctx, input)
}

func (api *ethAPI) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return api.b.Receipt(ctx, hash)
}

// netAPI serves the net_ namespace.
type netAPI struct {
	b *Backend
}

func (api *netAPI) Version() string {
	return api.b.ChainID().String()
}

func (api *netAPI) Listening() bool {
	return true
}

// web3API serves the web3_ namespace.
type web3API struct{}

func (web3API) ClientVersion() string {
	return ClientVersion
}
