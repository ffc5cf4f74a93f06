package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/models"
)

// Gateway translates task intents into calls against a fixed contract.
type Gateway struct {
	client  chain.Client
	address common.Address
	abi     abi.ABI
}

// NewGateway creates a gateway for the contract at address.
func NewGateway(client chain.Client, address common.Address) *Gateway {
	return &Gateway{
		client:  client,
		address: address,
		abi:     parsedABI,
	}
}

// Address returns the contract address.
func (g *Gateway) Address() common.Address {
	return g.address
}

// ListTasks returns the tasks owned by account. A nil account yields an
// empty list without touching the network.
func (g *Gateway) ListTasks(ctx context.Context, account *common.Address) ([]models.Task, error) {
	if account == nil {
		return []models.Task{}, nil
	}

	out, err := g.call(ctx, account, MethodGetUserTasks, *account)
	if err != nil {
		return []models.Task{}, err
	}
	if len(out) == 0 {
		return []models.Task{}, fmt.Errorf("%w: %s returned nothing", ErrMalformedResponse, MethodGetUserTasks)
	}

	tuples, ok := abi.ConvertType(out[0], new([]TaskTuple)).(*[]TaskTuple)
	if !ok {
		return []models.Task{}, fmt.Errorf("%w: unexpected %s shape", ErrMalformedResponse, MethodGetUserTasks)
	}

	tasks := make([]models.Task, len(*tuples))
	for i, t := range *tuples {
		tasks[i] = models.Task{
			Description: t.Description,
			Completed:   t.Completed,
			Timestamp:   clampUint64(t.Timestamp),
		}
	}
	return tasks, nil
}

// CompletedCount returns how many of account's tasks are completed. A nil
// account yields 0 without touching the network.
func (g *Gateway) CompletedCount(ctx context.Context, account *common.Address) (uint64, error) {
	if account == nil {
		return 0, nil
	}

	out, err := g.call(ctx, account, MethodGetCompletedCount, *account)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("%w: %s returned nothing", ErrMalformedResponse, MethodGetCompletedCount)
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected %s type %T", ErrMalformedResponse, MethodGetCompletedCount, out[0])
	}
	return clampUint64(n), nil
}

// CreateTask submits createTask with the trimmed description. A blank
// description returns ErrEmptyDescription and sends nothing.
func (g *Gateway) CreateTask(ctx context.Context, signer chain.Signer, description string) (common.Hash, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return common.Hash{}, ErrEmptyDescription
	}
	return g.transact(ctx, signer, MethodCreateTask, description)
}

// CompleteTask submits completeTask for the task at index.
func (g *Gateway) CompleteTask(ctx context.Context, signer chain.Signer, index int) (common.Hash, error) {
	if index < 0 {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return g.transact(ctx, signer, MethodCompleteTask, big.NewInt(int64(index)))
}

// WaitConfirmed waits for the receipt of hash and checks its status.
func (g *Gateway) WaitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := g.client.WaitReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", chain.ErrReverted, hash.Hex())
	}
	return receipt, nil
}

func (g *Gateway) call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	data, err := g.client.Call(ctx, from, g.address, input)
	if err != nil {
		return nil, err
	}
	out, err := g.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", ErrMalformedResponse, method, err)
	}
	return out, nil
}

func (g *Gateway) transact(ctx context.Context, signer chain.Signer, method string, args ...interface{}) (common.Hash, error) {
	if signer == nil {
		return common.Hash{}, ErrNoAccount
	}
	input, err := g.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return g.client.Send(ctx, signer, g.address, input)
}

func clampUint64(n *big.Int) uint64 {
	if n == nil || n.Sign() < 0 {
		return 0
	}
	if !n.IsUint64() {
		return ^uint64(0)
	}
	return n.Uint64()
}
