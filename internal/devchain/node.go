package devchain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fentz26/tasktrack/internal/scheduler"
	"github.com/fentz26/tasktrack/internal/store"
)

// Config configures a devchain node.
type Config struct {
	DBPath    string
	Listen    string
	ChainID   uint64
	Contract  common.Address
	BlockTime time.Duration
	// Instant seals a block as soon as a transaction is admitted, in
	// addition to the regular schedule.
	Instant       bool
	MaxTxPerBlock int
}

// Node wires the chain store, backend, block scheduler and server.
type Node struct {
	Store     *store.Store
	Backend   *Backend
	Scheduler *scheduler.Scheduler
	Server    *Server
}

// Open creates a node. Call Start to begin producing blocks.
func Open(cfg Config) (*Node, error) {
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open chain store: %w", err)
	}

	backend := NewBackend(st, cfg.ChainID, cfg.Contract)
	sch := scheduler.New(backend, &scheduler.Config{
		BlockTime:     cfg.BlockTime,
		MaxTxPerBlock: cfg.MaxTxPerBlock,
	})
	if cfg.Instant {
		backend.OnPending(sch.Trigger)
	}

	srv, err := NewServer(backend, cfg.Listen)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Node{Store: st, Backend: backend, Scheduler: sch, Server: srv}, nil
}

// Start begins block production.
func (n *Node) Start() {
	n.Scheduler.Start()
}

// DialInProc returns an rpc client connected directly to the node.
func (n *Node) DialInProc() *rpc.Client {
	return rpc.DialInProc(n.Server.RPC())
}

// Close stops the server and scheduler and closes the store.
func (n *Node) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := n.Server.Shutdown(ctx)
	n.Scheduler.Stop()
	if cerr := n.Store.Close(); err == nil {
		err = cerr
	}
	return err
}
