// Package tracker owns the submission lifecycle: it moves create and
// complete intents through pending, confirming and a terminal state, and
// keeps the cached task list in step with the chain.
package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/config"
	"github.com/fentz26/tasktrack/internal/contract"
	"github.com/fentz26/tasktrack/internal/models"
)

// subscriberBuffer bounds each subscriber's queue; the oldest snapshot is
// dropped when a subscriber falls behind.
const subscriberBuffer = 64

// Gateway is the contract surface the controller drives.
type Gateway interface {
	ListTasks(ctx context.Context, account *common.Address) ([]models.Task, error)
	CompletedCount(ctx context.Context, account *common.Address) (uint64, error)
	CreateTask(ctx context.Context, signer chain.Signer, description string) (common.Hash, error)
	CompleteTask(ctx context.Context, signer chain.Signer, index int) (common.Hash, error)
	WaitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Accounts exposes the wallet's connection state. The controller only reads it.
type Accounts interface {
	Address() *common.Address
	Signer() (chain.Signer, bool)
}

// Config controls controller timing.
type Config struct {
	// DwellTime is how long a succeeded submission is shown before reset.
	DwellTime time.Duration
	// ConfirmTimeout bounds a whole submission; zero means no bound.
	ConfirmTimeout time.Duration
}

// DefaultConfig returns the standard timing.
func DefaultConfig() Config {
	return Config{DwellTime: config.DefaultDwellTime}
}

// Snapshot is an immutable view of controller state.
type Snapshot struct {
	Account        *common.Address
	Submission     models.Submission
	Tasks          []models.Task
	CompletedCount uint64
	// ShowSuccess is true during the dwell after a succeeded submission.
	ShowSuccess bool
	// ClearInput increments each time a submission succeeds; views clear
	// their description input when it changes.
	ClearInput uint64
	// ReadErr is the most recent read failure, if any.
	ReadErr error
}

// Busy reports whether a submission is in flight.
func (s Snapshot) Busy() bool {
	return s.Submission.Status.InFlight()
}

// PendingCount is the number of tasks not yet completed.
func (s Snapshot) PendingCount() uint64 {
	total := uint64(len(s.Tasks))
	if s.CompletedCount >= total {
		return 0
	}
	return total - s.CompletedCount
}

type sendFunc func(ctx context.Context, signer chain.Signer) (common.Hash, error)

// readKind identifies one of the two independent reads behind Refresh.
type readKind int

const (
	readTasks readKind = iota
	readCount
	numReads
)

// Controller holds exactly one submission and the cached read state.
type Controller struct {
	gw       Gateway
	accounts Accounts
	cfg      Config
	log      log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    Snapshot
	readErrs [numReads]error
	dwell    *time.Timer
	subs     map[int]chan Snapshot
	nextSub  int
	closed   bool
}

// New creates an idle controller.
func New(gw Gateway, accounts Accounts, cfg Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		gw:       gw,
		accounts: accounts,
		cfg:      cfg,
		log:      log.New("component", "tracker"),
		ctx:      ctx,
		cancel:   cancel,
		state: Snapshot{
			Submission: models.Submission{Status: models.SubmissionIdle},
			Tasks:      []models.Task{},
		},
		subs: make(map[int]chan Snapshot),
	}
}

// CreateTask starts a createTask submission. A blank description is a no-op
// that returns contract.ErrEmptyDescription.
func (c *Controller) CreateTask(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return contract.ErrEmptyDescription
	}
	sub := models.Submission{Kind: models.SubmissionCreate, Description: description}
	return c.submit(sub, func(ctx context.Context, signer chain.Signer) (common.Hash, error) {
		return c.gw.CreateTask(ctx, signer, description)
	})
}

// CompleteTask starts a completeTask submission for the task at index.
func (c *Controller) CompleteTask(index int) error {
	if index < 0 {
		return contract.ErrInvalidIndex
	}
	sub := models.Submission{Kind: models.SubmissionComplete, Index: index}
	return c.submit(sub, func(ctx context.Context, signer chain.Signer) (common.Hash, error) {
		return c.gw.CompleteTask(ctx, signer, index)
	})
}

// CanSubmit reports whether a new intent would be accepted.
func (c *Controller) CanSubmit() bool {
	if c.accounts.Address() == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.state.Submission.Status.InFlight()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel that receives the current state immediately
// and every subsequent change. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	ch <- c.snapshotLocked()
	if c.closed {
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	}
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Refresh re-reads the task list and completed count for the current
// account. The two reads run independently and each publishes its own
// result; Refresh returns when both are done.
func (c *Controller) Refresh(ctx context.Context) {
	account := c.accounts.Address()

	c.mu.Lock()
	if !sameAccount(c.state.Account, account) {
		c.state.Account = account
		c.state.Tasks = []models.Task{}
		c.state.CompletedCount = 0
		c.state.ReadErr = nil
		c.readErrs = [numReads]error{}
		c.publishLocked()
	}
	c.mu.Unlock()

	if account == nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tasks, err := c.gw.ListTasks(ctx, account)
		c.applyRead(account, readTasks, err, func(s *Snapshot) {
			if err != nil {
				tasks = []models.Task{}
			}
			s.Tasks = tasks
		})
	}()
	go func() {
		defer wg.Done()
		count, err := c.gw.CompletedCount(ctx, account)
		c.applyRead(account, readCount, err, func(s *Snapshot) {
			if err != nil {
				count = 0
			}
			s.CompletedCount = count
		})
	}()
	wg.Wait()
}

// Close stops in-flight work and closes all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopDwellLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) submit(sub models.Submission, send sendFunc) error {
	signer, ok := c.accounts.Signer()
	if !ok {
		return ErrNotConnected
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Submission.Status.InFlight() {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	c.stopDwellLocked()

	sub.ID = uuid.NewString()
	sub.Status = models.SubmissionPending
	sub.StartedAt = time.Now()
	c.state.Submission = sub
	c.state.ShowSuccess = false
	c.publishLocked()

	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Info("Submission started", "id", sub.ID, "kind", sub.Kind, "from", signer.Address())
	go c.run(sub.ID, signer, send)
	return nil
}

func (c *Controller) run(id string, signer chain.Signer, send sendFunc) {
	defer c.wg.Done()

	ctx := c.ctx
	if c.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
		defer cancel()
	}

	hash, err := send(ctx, signer)
	if err != nil {
		c.fail(id, err)
		return
	}
	c.transition(id, func(s *Snapshot) {
		s.Submission.Status = models.SubmissionConfirming
		s.Submission.TxHash = &hash
	})
	c.log.Info("Submission accepted", "id", id, "hash", hash)

	receipt, err := c.gw.WaitConfirmed(ctx, hash)
	if err != nil {
		c.fail(id, err)
		return
	}
	c.succeed(id, receipt)

	c.Refresh(c.ctx)
}

func (c *Controller) succeed(id string, receipt *types.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Submission.ID != id {
		return
	}
	c.state.Submission.Status = models.SubmissionSucceeded
	c.state.ShowSuccess = true
	c.state.ClearInput++
	c.publishLocked()

	var block uint64
	if receipt != nil && receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	c.log.Info("Submission confirmed", "id", id, "block", block)

	c.stopDwellLocked()
	if c.closed {
		return
	}
	c.dwell = time.AfterFunc(c.cfg.DwellTime, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state.Submission.ID != id || c.state.Submission.Status != models.SubmissionSucceeded {
			return
		}
		c.state.Submission = models.Submission{Status: models.SubmissionIdle}
		c.state.ShowSuccess = false
		c.publishLocked()
	})
}

func (c *Controller) fail(id string, err error) {
	c.log.Warn("Submission failed", "id", id, "err", err)
	c.transition(id, func(s *Snapshot) {
		s.Submission.Status = models.SubmissionFailed
		s.Submission.Err = err
		s.ShowSuccess = false
	})
}

func (c *Controller) transition(id string, apply func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Submission.ID != id {
		return
	}
	apply(&c.state)
	c.publishLocked()
}

// applyRead stores one read's result. ReadErr reflects the latest outcome of
// every read, so a success on one does not hide a failure on the other.
func (c *Controller) applyRead(account *common.Address, kind readKind, err error, apply func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !sameAccount(c.state.Account, account) {
		// The wallet switched accounts while the read was in flight.
		return
	}
	if err != nil {
		c.log.Warn("Read failed", "account", account, "err", err)
	}
	c.readErrs[kind] = err
	c.state.ReadErr = errors.Join(c.readErrs[:]...)
	apply(&c.state)
	c.publishLocked()
}

func (c *Controller) stopDwellLocked() {
	if c.dwell != nil {
		c.dwell.Stop()
		c.dwell = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := c.state
	snap.Tasks = append([]models.Task(nil), c.state.Tasks...)
	if snap.Tasks == nil {
		snap.Tasks = []models.Task{}
	}
	if c.state.Account != nil {
		addr := *c.state.Account
		snap.Account = &addr
	}
	if c.state.Submission.TxHash != nil {
		h := *c.state.Submission.TxHash
		snap.Submission.TxHash = &h
	}
	return snap
}

func (c *Controller) publishLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func sameAccount(a, b *common.Address) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
