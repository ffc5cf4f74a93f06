package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Producer seals pending transactions into a block.
type Producer interface {
	// MineBlock includes up to limit pending transactions in a new block and
	// returns how many were included. No block is produced when the pool is
	// empty.
	MineBlock(ctx context.Context, limit int) (int, error)
}

// Stats is a snapshot of block production counters.
type Stats struct {
	Blocks       uint64 `json:"blocks"`
	Transactions uint64 `json:"transactions"`
	Failures     uint64 `json:"failures"`
}

// Scheduler calls the producer on a fixed interval.
type Scheduler struct {
	producer Producer
	config   *Config
	log      log.Logger

	mu    sync.Mutex
	stats Stats

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	trigger chan struct{}
}

// New creates a new scheduler.
func New(p Producer, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		producer: p,
		config:   cfg,
		log:      log.New("component", "scheduler"),
		ctx:      ctx,
		cancel:   cancel,
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins the block loop.
func (sch *Scheduler) Start() {
	sch.wg.Add(1)
	go sch.loop()
	sch.log.Info("Block scheduler started", "interval", sch.config.interval())
}

// Stop gracefully stops the scheduler.
func (sch *Scheduler) Stop() {
	sch.cancel()
	sch.wg.Wait()
	sch.log.Info("Block scheduler stopped")
}

// Trigger asks for a block before the next tick. Calls made while a
// request is already queued are coalesced.
func (sch *Scheduler) Trigger() {
	select {
	case sch.trigger <- struct{}{}:
	default:
	}
}

// loop produces a block on every tick or trigger.
func (sch *Scheduler) loop() {
	defer sch.wg.Done()

	ticker := time.NewTicker(sch.config.interval())
	defer ticker.Stop()

	for {
		select {
		case <-sch.ctx.Done():
			return
		case <-ticker.C:
			sch.produce()
		case <-sch.trigger:
			sch.produce()
		}
	}
}

func (sch *Scheduler) produce() {
	n, err := sch.producer.MineBlock(sch.ctx, sch.config.MaxTxPerBlock)

	sch.mu.Lock()
	defer sch.mu.Unlock()
	if err != nil {
		sch.stats.Failures++
		sch.log.Error("Block production failed", "err", err)
		return
	}
	if n > 0 {
		sch.stats.Blocks++
		sch.stats.Transactions += uint64(n)
	}
}

// GetStats returns current block production counters.
func (sch *Scheduler) GetStats() Stats {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.stats
}
