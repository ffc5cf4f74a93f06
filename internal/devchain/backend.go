// Package devchain is a single-node development chain that serves the task
// tracker contract over Ethereum JSON-RPC. State lives in SQLite; the
// contract is executed natively rather than by an EVM.
package devchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/fentz26/tasktrack/internal/contract"
	"github.com/fentz26/tasktrack/internal/store"
)

// Gas schedule. Only relative sizes matter; there are no balances.
const (
	txGas           = 21000
	txDataByteGas   = 16
	createTaskGas   = 45000
	completeTaskGas = 25000
)

// DefaultGasPrice is the fixed price reported by eth_gasPrice.
var DefaultGasPrice = big.NewInt(1_000_000_000)

// Sentinel errors for transaction admission.
var (
	ErrUnprotectedTx  = errors.New("only replay-protected transactions are accepted")
	ErrWrongChainID   = errors.New("invalid chain id for signer")
	ErrNonceTooLow    = errors.New("nonce too low")
	ErrNonceTooHigh   = errors.New("nonce too high")
	ErrContractCreate = errors.New("contract creation is not supported")
	ErrIntrinsicGas   = errors.New("intrinsic gas too low")
)

// Backend executes the task tracker contract against the chain store.
type Backend struct {
	store    *store.Store
	chainID  *big.Int
	contract common.Address
	abi      abi.ABI
	signer   types.Signer
	log      log.Logger

	// mu serialises pool admission and block building.
	mu        sync.Mutex
	onPending func()
	now       func() time.Time
}

// NewBackend creates a backend serving the contract at address.
func NewBackend(st *store.Store, chainID uint64, address common.Address) *Backend {
	id := new(big.Int).SetUint64(chainID)
	return &Backend{
		store:    st,
		chainID:  id,
		contract: address,
		abi:      contract.ABI(),
		signer:   types.LatestSignerForChainID(id),
		log:      log.New("component", "devchain"),
		now:      time.Now,
	}
}

// OnPending registers fn to run after each admitted transaction.
func (b *Backend) OnPending(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPending = fn
}

// ChainID returns the chain id.
func (b *Backend) ChainID() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// Contract returns the served contract address.
func (b *Backend) Contract() common.Address {
	return b.contract
}

// GasPrice returns the fixed gas price.
func (b *Backend) GasPrice() *big.Int {
	return new(big.Int).Set(DefaultGasPrice)
}

// BlockNumber returns the latest block number.
func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	return b.store.BlockNumber(ctx)
}

// NonceAt returns the next nonce for account.
func (b *Backend) NonceAt(ctx context.Context, account common.Address, pending bool) (uint64, error) {
	return b.store.NonceAt(ctx, account, pending)
}

// Receipt returns a mined transaction's receipt, or nil.
func (b *Backend) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return b.store.Receipt(ctx, hash)
}

// Ping checks the chain store.
func (b *Backend) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

// Call runs a read-only call against the latest state. Calls to any
// address other than the contract behave like calls to an empty account.
func (b *Backend) Call(ctx context.Context, from common.Address, to *common.Address, data []byte) ([]byte, error) {
	if to == nil || *to != b.contract {
		return nil, nil
	}
	method, args, err := b.decode(data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case contract.MethodGetUserTasks:
		owner := args[0].(common.Address)
		tasks, err := b.store.ListTasks(ctx, owner)
		if err != nil {
			return nil, err
		}
		tuples := make([]contract.TaskTuple, len(tasks))
		for i, t := range tasks {
			tuples[i] = contract.TaskTuple{
				Description: t.Description,
				Completed:   t.Completed,
				Timestamp:   new(big.Int).SetUint64(t.Timestamp),
			}
		}
		return method.Outputs.Pack(tuples)

	case contract.MethodGetCompletedCount:
		owner := args[0].(common.Address)
		n, err := b.store.CompletedCount(ctx, owner)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(n))

	default:
		if err := b.check(ctx, from, method, args); err != nil {
			return nil, err
		}
		return []byte{}, nil
	}
}

// EstimateGas returns the gas a transaction would use, or a revert error
// if it would fail against the latest state.
func (b *Backend) EstimateGas(ctx context.Context, from common.Address, to *common.Address, data []byte) (uint64, error) {
	if to == nil {
		return 0, ErrContractCreate
	}
	if *to != b.contract {
		return intrinsicGas(data), nil
	}
	method, args, err := b.decode(data)
	if err != nil {
		return 0, err
	}
	if err := b.check(ctx, from, method, args); err != nil {
		return 0, err
	}
	return gasFor(method.Name, data), nil
}

// SendRawTransaction validates a signed transaction and adds it to the pool.
func (b *Backend) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("decode transaction: %w", err)
	}
	if !tx.Protected() {
		return common.Hash{}, ErrUnprotectedTx
	}
	if tx.ChainId().Cmp(b.chainID) != 0 {
		return common.Hash{}, fmt.Errorf("%w: have %s, want %s", ErrWrongChainID, tx.ChainId(), b.chainID)
	}
	if tx.To() == nil {
		return common.Hash{}, ErrContractCreate
	}
	if tx.Gas() < intrinsicGas(tx.Data()) {
		return common.Hash{}, ErrIntrinsicGas
	}
	sender, err := types.Sender(b.signer, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("recover sender: %w", err)
	}

	b.mu.Lock()
	next, err := b.store.NonceAt(ctx, sender, true)
	if err != nil {
		b.mu.Unlock()
		return common.Hash{}, err
	}
	switch {
	case tx.Nonce() < next:
		b.mu.Unlock()
		return common.Hash{}, fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooLow, sender.Hex(), tx.Nonce(), next)
	case tx.Nonce() > next:
		b.mu.Unlock()
		return common.Hash{}, fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooHigh, sender.Hex(), tx.Nonce(), next)
	}
	err = b.store.AddTransaction(ctx, store.PendingTx{
		Hash:   tx.Hash(),
		Sender: sender,
		Nonce:  tx.Nonce(),
		Raw:    raw,
	})
	notify := b.onPending
	b.mu.Unlock()
	if err != nil {
		return common.Hash{}, err
	}

	b.log.Debug("Transaction admitted", "hash", tx.Hash(), "from", sender, "nonce", tx.Nonce())
	if notify != nil {
		notify()
	}
	return tx.Hash(), nil
}

// MineBlock seals up to limit pending transactions into a new block.
func (b *Backend) MineBlock(ctx context.Context, limit int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending, err := b.store.PendingTransactions(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	head, err := b.store.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	number := head + 1
	timestamp := uint64(b.now().Unix())

	hashes := make([]common.Hash, len(pending))
	for i, p := range pending {
		hashes[i] = p.Hash
	}
	sealed, err := rlp.EncodeToBytes([]interface{}{number, timestamp, hashes})
	if err != nil {
		return 0, fmt.Errorf("encode block header: %w", err)
	}
	blockHash := crypto.Keccak256Hash(sealed)

	block, err := b.store.BeginBlock(ctx, number)
	if err != nil {
		return 0, err
	}
	defer block.Rollback()

	var cumulative uint64
	var logIndex uint
	for i, p := range pending {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(p.Raw); err != nil {
			return 0, fmt.Errorf("decode pooled transaction %s: %w", p.Hash.Hex(), err)
		}

		status, gasUsed, logs, err := b.apply(block, tx, p.Sender, timestamp)
		if err != nil {
			return 0, fmt.Errorf("apply %s: %w", p.Hash.Hex(), err)
		}
		cumulative += gasUsed

		receipt := &types.Receipt{
			Type:              tx.Type(),
			Status:            status,
			CumulativeGasUsed: cumulative,
			Logs:              []*types.Log{},
			TxHash:            tx.Hash(),
			GasUsed:           gasUsed,
			EffectiveGasPrice: tx.GasPrice(),
			BlockHash:         blockHash,
			BlockNumber:       new(big.Int).SetUint64(number),
			TransactionIndex:  uint(i),
		}
		for _, l := range logs {
			l.BlockNumber = number
			l.BlockHash = blockHash
			l.TxHash = tx.Hash()
			l.TxIndex = uint(i)
			l.Index = logIndex
			logIndex++
			receipt.Logs = append(receipt.Logs, l)
			receipt.Bloom.Add(l.Address.Bytes())
			for _, topic := range l.Topics {
				receipt.Bloom.Add(topic.Bytes())
			}
		}

		if err := block.PutReceipt(receipt); err != nil {
			return 0, err
		}
	}

	if err := block.Commit(blockHash, timestamp); err != nil {
		return 0, err
	}
	b.log.Info("Sealed block", "number", number, "hash", blockHash, "txs", len(pending))
	return len(pending), nil
}

// apply executes one transaction inside block. A revert is reported through
// the receipt status; only storage failures are returned as errors.
func (b *Backend) apply(block *store.BlockTx, tx *types.Transaction, sender common.Address, timestamp uint64) (uint64, uint64, []*types.Log, error) {
	if *tx.To() != b.contract {
		return types.ReceiptStatusSuccessful, intrinsicGas(tx.Data()), nil, nil
	}

	method, args, err := b.decode(tx.Data())
	if err != nil {
		b.log.Debug("Transaction reverted", "hash", tx.Hash(), "err", err)
		return types.ReceiptStatusFailed, intrinsicGas(tx.Data()), nil, nil
	}
	needed := gasFor(method.Name, tx.Data())
	if tx.Gas() < needed {
		b.log.Debug("Transaction out of gas", "hash", tx.Hash(), "gas", tx.Gas(), "needed", needed)
		return types.ReceiptStatusFailed, tx.Gas(), nil, nil
	}

	switch method.Name {
	case contract.MethodCreateTask:
		description := args[0].(string)
		idx, err := block.AppendTask(sender, description, timestamp)
		if err != nil {
			return 0, 0, nil, err
		}
		l, err := b.event(contract.EventTaskCreated, sender, new(big.Int).SetUint64(idx), description)
		if err != nil {
			return 0, 0, nil, err
		}
		return types.ReceiptStatusSuccessful, needed, []*types.Log{l}, nil

	case contract.MethodCompleteTask:
		index := args[0].(*big.Int)
		if !index.IsUint64() {
			return types.ReceiptStatusFailed, needed, nil, nil
		}
		err := block.CompleteTask(sender, index.Uint64())
		if errors.Is(err, store.ErrTaskNotFound) || errors.Is(err, store.ErrTaskCompleted) {
			b.log.Debug("Transaction reverted", "hash", tx.Hash(), "err", err)
			return types.ReceiptStatusFailed, needed, nil, nil
		}
		if err != nil {
			return 0, 0, nil, err
		}
		l, err := b.event(contract.EventTaskCompleted, sender, index)
		if err != nil {
			return 0, 0, nil, err
		}
		return types.ReceiptStatusSuccessful, needed, []*types.Log{l}, nil

	default:
		// View functions sent as transactions change nothing.
		return types.ReceiptStatusSuccessful, needed, nil, nil
	}
}

// check reports whether a mutating call from sender would revert against
// the latest committed state.
func (b *Backend) check(ctx context.Context, from common.Address, method *abi.Method, args []interface{}) error {
	if method.Name != contract.MethodCompleteTask {
		return nil
	}
	index := args[0].(*big.Int)
	tasks, err := b.store.ListTasks(ctx, from)
	if err != nil {
		return err
	}
	if !index.IsUint64() || index.Uint64() >= uint64(len(tasks)) {
		return newRevertError(store.ErrTaskNotFound.Error())
	}
	if tasks[index.Uint64()].Completed {
		return newRevertError(store.ErrTaskCompleted.Error())
	}
	return nil
}

func (b *Backend) decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, newRevertError("missing function selector")
	}
	method, err := b.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, newRevertError("unknown function selector")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, newRevertError("malformed calldata")
	}
	return method, args, nil
}

func (b *Backend) event(name string, user common.Address, values ...interface{}) (*types.Log, error) {
	ev := b.abi.Events[name]
	data, err := ev.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	return &types.Log{
		Address: b.contract,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(user.Bytes())},
		Data:    data,
	}, nil
}

func intrinsicGas(data []byte) uint64 {
	return txGas + uint64(len(data))*txDataByteGas
}

func gasFor(method string, data []byte) uint64 {
	gas := intrinsicGas(data)
	switch method {
	case contract.MethodCreateTask:
		gas += createTaskGas
	case contract.MethodCompleteTask:
		gas += completeTaskGas
	}
	return gas
}
