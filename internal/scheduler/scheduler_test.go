package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockProducer counts calls and reports a fixed number of transactions.
type mockProducer struct {
	mu     sync.Mutex
	calls  int
	limits []int
	txs    int
	err    error
}

func (m *mockProducer) MineBlock(ctx context.Context, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.limits = append(m.limits, limit)
	return m.txs, m.err
}

func (m *mockProducer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestSchedulerTicks(t *testing.T) {
	p := &mockProducer{txs: 2}
	sch := New(p, &Config{BlockTime: 10 * time.Millisecond, MaxTxPerBlock: 8})
	sch.Start()
	defer sch.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for p.callCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 3 blocks, got %d calls", p.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	stats := sch.GetStats()
	if stats.Blocks < 3 {
		t.Errorf("Expected at least 3 blocks, got %d", stats.Blocks)
	}
	if stats.Transactions != stats.Blocks*2 {
		t.Errorf("Expected 2 transactions per block, got %d over %d blocks", stats.Transactions, stats.Blocks)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, limit := range p.limits {
		if limit != 8 {
			t.Errorf("Expected limit 8, got %d", limit)
		}
	}
}

func TestSchedulerTrigger(t *testing.T) {
	p := &mockProducer{txs: 1}
	sch := New(p, &Config{BlockTime: time.Hour})
	sch.Start()
	defer sch.Stop()

	sch.Trigger()

	deadline := time.Now().Add(2 * time.Second)
	for p.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Trigger did not produce a block")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerEmptyPoolAndFailures(t *testing.T) {
	p := &mockProducer{}
	sch := New(p, &Config{BlockTime: time.Hour})

	sch.produce()
	if stats := sch.GetStats(); stats.Blocks != 0 {
		t.Errorf("Expected no block for an empty pool, got %d", stats.Blocks)
	}

	p.err = errors.New("disk full")
	sch.produce()
	if stats := sch.GetStats(); stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
}

func TestSchedulerStopIsPrompt(t *testing.T) {
	sch := New(&mockProducer{}, nil)
	sch.Start()

	done := make(chan struct{})
	go func() {
		sch.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestConfigInterval(t *testing.T) {
	if got := (&Config{}).interval(); got != DefaultConfig().BlockTime {
		t.Errorf("Expected default interval, got %v", got)
	}
	if got := (&Config{BlockTime: time.Second}).interval(); got != time.Second {
		t.Errorf("Expected 1s interval, got %v", got)
	}
}
