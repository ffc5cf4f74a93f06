// Package store provides SQLite-backed chain state for the tasktrack devchain.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	_ "modernc.org/sqlite"

	"github.com/fentz26/tasktrack/internal/models"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Sentinel errors for chain state operations.
var (
	ErrDuplicateTx   = errors.New("transaction already known")
	ErrTaskNotFound  = errors.New("task index out of range")
	ErrTaskCompleted = errors.New("task already completed")
)

// PendingTx is a signed transaction waiting to be mined.
type PendingTx struct {
	Hash   common.Hash
	Sender common.Address
	Nonce  uint64
	Raw    []byte
}

// Store provides access to the devchain SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		owner TEXT NOT NULL,
		idx INTEGER NOT NULL,
		description TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (owner, idx)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		hash TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		nonce INTEGER NOT NULL,
		raw BLOB NOT NULL,
		block_number INTEGER
	);

	CREATE TABLE IF NOT EXISTS receipts (
		tx_hash TEXT PRIMARY KEY,
		block_number INTEGER NOT NULL,
		body TEXT NOT NULL,
		FOREIGN KEY (tx_hash) REFERENCES transactions(hash)
	);

	CREATE TABLE IF NOT EXISTS blocks (
		number INTEGER PRIMARY KEY,
		hash TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(sender, nonce);
	CREATE INDEX IF NOT EXISTS idx_transactions_block ON transactions(block_number);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Transaction pool ---

// AddTransaction queues a signed transaction for the next block.
func (s *Store) AddTransaction(ctx context.Context, tx PendingTx) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (hash, sender, nonce, raw) VALUES (?, ?, ?, ?)`,
		tx.Hash.Hex(), tx.Sender.Hex(), tx.Nonce, tx.Raw,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTx
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// PendingTransactions returns up to limit unmined transactions in arrival
// order. A limit of zero returns all of them.
func (s *Store) PendingTransactions(ctx context.Context, limit int) ([]PendingTx, error) {
	query := `SELECT hash, sender, nonce, raw FROM transactions WHERE block_number IS NULL ORDER BY rowid`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending transactions: %w", err)
	}
	defer rows.Close()

	var txs []PendingTx
	for rows.Next() {
		var hash, sender string
		var tx PendingTx
		if err := rows.Scan(&hash, &sender, &tx.Nonce, &tx.Raw); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Hash = common.HexToHash(hash)
		tx.Sender = common.HexToAddress(sender)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// NonceAt returns the next nonce for sender. With pending set, queued
// transactions are counted too.
func (s *Store) NonceAt(ctx context.Context, sender common.Address, pending bool) (uint64, error) {
	query := `SELECT COALESCE(MAX(nonce) + 1, 0) FROM transactions WHERE sender = ?`
	if !pending {
		query += ` AND block_number IS NOT NULL`
	}

	var nonce uint64
	if err := s.db.QueryRowContext(ctx, query, sender.Hex()).Scan(&nonce); err != nil {
		return 0, fmt.Errorf("query nonce: %w", err)
	}
	return nonce, nil
}

// --- Blocks and receipts ---

// BlockNumber returns the number of the latest mined block, or 0 when only
// genesis exists.
func (s *Store) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(number), 0) FROM blocks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("query block number: %w", err)
	}
	return n, nil
}

// Receipt returns the receipt for a mined transaction, or nil if the
// transaction is unknown or still pending.
func (s *Store) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM receipts WHERE tx_hash = ?`, hash.Hex(),
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query receipt: %w", err)
	}

	receipt := new(types.Receipt)
	if err := json.Unmarshal([]byte(body), receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return receipt, nil
}

// --- Contract state ---

// ListTasks returns owner's tasks in index order.
func (s *Store) ListTasks(ctx context.Context, owner common.Address) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT description, completed, created_at FROM tasks WHERE owner = ? ORDER BY idx`,
		owner.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(&task.Description, &task.Completed, &task.Timestamp); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CompletedCount returns how many of owner's tasks are completed.
func (s *Store) CompletedCount(ctx context.Context, owner common.Address) (uint64, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE owner = ? AND completed = 1`, owner.Hex(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed tasks: %w", err)
	}
	return n, nil
}

// --- Block building ---

// BlockTx applies one block's worth of state changes atomically.
type BlockTx struct {
	tx     *sql.Tx
	ctx    context.Context
	number uint64
}

// BeginBlock opens the state transaction for block number.
func (s *Store) BeginBlock(ctx context.Context, number uint64) (*BlockTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &BlockTx{tx: tx, ctx: ctx, number: number}, nil
}

// Number returns the block number being built.
func (b *BlockTx) Number() uint64 {
	return b.number
}

// AppendTask adds a task to the end of owner's list and returns its index.
func (b *BlockTx) AppendTask(owner common.Address, description string, timestamp uint64) (uint64, error) {
	var idx uint64
	err := b.tx.QueryRowContext(b.ctx,
		`SELECT COUNT(*) FROM tasks WHERE owner = ?`, owner.Hex(),
	).Scan(&idx)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}

	_, err = b.tx.ExecContext(b.ctx,
		`INSERT INTO tasks (owner, idx, description, completed, created_at) VALUES (?, ?, ?, 0, ?)`,
		owner.Hex(), idx, description, timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return idx, nil
}

// CompleteTask marks owner's task at idx completed.
func (b *BlockTx) CompleteTask(owner common.Address, idx uint64) error {
	var completed bool
	err := b.tx.QueryRowContext(b.ctx,
		`SELECT completed FROM tasks WHERE owner = ? AND idx = ?`, owner.Hex(), idx,
	).Scan(&completed)
	if err == sql.ErrNoRows {
		return ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("query task: %w", err)
	}
	if completed {
		return ErrTaskCompleted
	}

	_, err = b.tx.ExecContext(b.ctx,
		`UPDATE tasks SET completed = 1 WHERE owner = ? AND idx = ?`, owner.Hex(), idx,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// PutReceipt records a receipt and marks its transaction mined in this block.
func (b *BlockTx) PutReceipt(receipt *types.Receipt) error {
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	result, err := b.tx.ExecContext(b.ctx,
		`UPDATE transactions SET block_number = ? WHERE hash = ? AND block_number IS NULL`,
		b.number, receipt.TxHash.Hex(),
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %s is not pending", receipt.TxHash.Hex())
	}

	_, err = b.tx.ExecContext(b.ctx,
		`INSERT INTO receipts (tx_hash, block_number, body) VALUES (?, ?, ?)`,
		receipt.TxHash.Hex(), b.number, string(body),
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// Commit seals the block.
func (b *BlockTx) Commit(hash common.Hash, timestamp uint64) error {
	_, err := b.tx.ExecContext(b.ctx,
		`INSERT INTO blocks (number, hash, timestamp) VALUES (?, ?, ?)`,
		b.number, hash.Hex(), timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the block. It is safe to call after Commit.
func (b *BlockTx) Rollback() error {
	err := b.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "unique constraint")
}
