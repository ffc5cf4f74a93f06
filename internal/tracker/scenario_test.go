package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/config"
	"github.com/fentz26/tasktrack/internal/connectors"
	"github.com/fentz26/tasktrack/internal/connectors/devkey"
	"github.com/fentz26/tasktrack/internal/contract"
	"github.com/fentz26/tasktrack/internal/devchain"
	"github.com/fentz26/tasktrack/internal/models"
	"github.com/fentz26/tasktrack/internal/store"
	"github.com/fentz26/tasktrack/internal/wallet"
)

// newDevchainController wires a controller to an in-process devchain
// through the real gateway, rpc client and wallet.
func newDevchainController(t *testing.T, dwell time.Duration) (*Controller, *wallet.Wallet) {
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

	client := chain.NewRPCClient(node.DialInProc(), chain.WithPollInterval(5*time.Millisecond))
	gw := contract.NewGateway(client, config.DevchainContract)

	reg := connectors.NewRegistry()
	reg.Register(devkey.New(0))
	w := wallet.New(reg)

	c := New(gw, w, Config{DwellTime: dwell, ConfirmTimeout: 10 * time.Second})
	t.Cleanup(c.Close)
	return c, w
}

func TestScenario_FreshAccount(t *testing.T) {
	c, w := newDevchainController(t, time.Hour)
	ctx := context.Background()

	_, err := w.Connect(ctx, devkey.ID)
	require.NoError(t, err)
	c.Refresh(ctx)

	snap := c.Snapshot()
	require.NotNil(t, snap.Account)
	assert.Empty(t, snap.Tasks)
	assert.Zero(t, snap.CompletedCount)
	assert.Zero(t, snap.PendingCount())
	assert.NoError(t, snap.ReadErr)
}

func TestScenario_CreateThenComplete(t *testing.T) {
	c, w := newDevchainController(t, 50*time.Millisecond)
	ctx := context.Background()

	_, err := w.Connect(ctx, devkey.ID)
	require.NoError(t, err)
	c.Refresh(ctx)

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.CreateTask("buy milk"))

	var seen []models.SubmissionStatus
	snap := waitFor(t, updates, func(s Snapshot) bool {
		if len(seen) == 0 || seen[len(seen)-1] != s.Submission.Status {
			seen = append(seen, s.Submission.Status)
		}
		return s.Submission.Status == models.SubmissionIdle && len(s.Tasks) == 1
	})
	assert.Equal(t, []models.SubmissionStatus{
		models.SubmissionPending,
		models.SubmissionConfirming,
		models.SubmissionSucceeded,
		models.SubmissionIdle,
	}, seen[len(seen)-4:])
	assert.Equal(t, "buy milk", snap.Tasks[0].Description)
	assert.False(t, snap.Tasks[0].Completed)
	assert.Equal(t, uint64(1), snap.PendingCount())

	require.NoError(t, c.CompleteTask(0))
	snap = waitFor(t, updates, func(s Snapshot) bool {
		return s.Submission.Status == models.SubmissionIdle && s.CompletedCount == 1
	})
	assert.True(t, snap.Tasks[0].Completed)
	assert.Zero(t, snap.PendingCount())
	assert.Equal(t, uint64(2), snap.ClearInput)
}

func TestScenario_RejectedSignature(t *testing.T) {
	c, w := newDevchainController(t, time.Hour)
	ctx := context.Background()

	_, err := w.Connect(ctx, devkey.ID)
	require.NoError(t, err)
	w.SetApprover(func(ctx context.Context, req wallet.SignRequest) error {
		return chain.ErrSignatureRejected
	})
	c.Refresh(ctx)

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.CreateTask("never signed"))
	snap := waitFor(t, updates, statusIs(models.SubmissionFailed))
	assert.ErrorIs(t, snap.Submission.Err, chain.ErrSignatureRejected)
	assert.Empty(t, snap.Tasks)
	assert.True(t, c.CanSubmit())
}

func TestScenario_Disconnect(t *testing.T) {
	c, w := newDevchainController(t, time.Hour)
	ctx := context.Background()

	_, err := w.Connect(ctx, devkey.ID)
	require.NoError(t, err)
	c.Refresh(ctx)
	require.True(t, c.CanSubmit())

	w.Disconnect()
	c.Refresh(ctx)
	assert.Nil(t, c.Snapshot().Account)
	assert.False(t, c.CanSubmit())
	assert.ErrorIs(t, c.CreateTask("x"), ErrNotConnected)
}
