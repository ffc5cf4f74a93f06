package tui

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/connectors"
	"github.com/fentz26/tasktrack/internal/connectors/devkey"
	"github.com/fentz26/tasktrack/internal/host"
	"github.com/fentz26/tasktrack/internal/models"
	"github.com/fentz26/tasktrack/internal/tracker"
	"github.com/fentz26/tasktrack/internal/wallet"
)

// heldGateway serves reads from memory and holds every write until the
// context is cancelled.
type heldGateway struct {
	mu        sync.Mutex
	tasks     []models.Task
	completed uint64
	creates   []string
	completes []int
}

func (g *heldGateway) ListTasks(ctx context.Context, account *common.Address) ([]models.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.Task(nil), g.tasks...), nil
}

func (g *heldGateway) CompletedCount(ctx context.Context, account *common.Address) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completed, nil
}

func (g *heldGateway) CreateTask(ctx context.Context, signer chain.Signer, description string) (common.Hash, error) {
	g.mu.Lock()
	g.creates = append(g.creates, description)
	g.mu.Unlock()
	<-ctx.Done()
	return common.Hash{}, ctx.Err()
}

func (g *heldGateway) CompleteTask(ctx context.Context, signer chain.Signer, index int) (common.Hash, error) {
	g.mu.Lock()
	g.completes = append(g.completes, index)
	g.mu.Unlock()
	<-ctx.Done()
	return common.Hash{}, ctx.Err()
}

func (g *heldGateway) WaitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func noHost() host.Host {
	return host.NewEnvHost(func(string) (string, bool) { return "", false })
}

func newTestApp(t *testing.T, gw *heldGateway, connector string) (*App, *wallet.Wallet) {
	t.Helper()
	reg := connectors.NewRegistry()
	reg.Register(devkey.New(0))
	w := wallet.New(reg)

	ctrl := tracker.New(gw, w, tracker.Config{DwellTime: time.Hour})
	t.Cleanup(ctrl.Close)

	a := New(Options{
		Controller: ctrl,
		Wallet:     w,
		Host:       noHost(),
		Network:    "devchain",
		Connector:  connector,
	})
	return a, w
}

// connected makes the app ready with the wallet connected and tasks loaded.
func connected(t *testing.T, a *App, w *wallet.Wallet) {
	t.Helper()
	a.Update(hostReadyMsg{})
	_, err := w.Connect(context.Background(), devkey.ID)
	require.NoError(t, err)
	a.ctrl.Refresh(context.Background())
	a.Update(snapshotMsg{snap: a.ctrl.Snapshot()})
}

func press(a *App, s string) tea.Cmd {
	var msg tea.KeyMsg
	switch s {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	_, cmd := a.Update(msg)
	return cmd
}

func typeText(a *App, s string) {
	for _, r := range s {
		a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestView_LoadingUntilHostReady(t *testing.T) {
	a, _ := newTestApp(t, &heldGateway{}, devkey.ID)
	assert.Contains(t, a.View(), "Loading")
	assert.Nil(t, press(a, "c"), "keys are ignored before the handshake finishes")

	a.Update(hostReadyMsg{context: &models.HostContext{User: &models.UserProfile{ID: 7, Handle: "alice"}}})
	view := a.View()
	assert.Contains(t, view, "@alice")
	assert.Contains(t, view, "not connected")
	assert.Contains(t, view, "Press c to connect")
}

func TestConnectKey(t *testing.T) {
	gw := &heldGateway{tasks: []models.Task{{Description: "buy milk", Timestamp: 1700000000}}}
	a, w := newTestApp(t, gw, devkey.ID)
	a.Update(hostReadyMsg{})

	cmd := press(a, "c")
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, walletMsg{}, msg)
	require.True(t, w.IsConnected())

	_, refresh := a.Update(msg)
	require.NotNil(t, refresh)
	refresh()
	a.Update(snapshotMsg{snap: a.ctrl.Snapshot()})

	view := a.View()
	assert.Contains(t, view, shortAddress(*w.Address()))
	assert.Contains(t, view, "buy milk")
	assert.Contains(t, view, "Total")
}

func TestConnectError(t *testing.T) {
	a, _ := newTestApp(t, &heldGateway{}, "injected")
	a.Update(hostReadyMsg{})

	cmd := press(a, "c")
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, errMsg{}, msg)
	assert.ErrorIs(t, msg.(errMsg).err, wallet.ErrNoConnector)

	_, next := a.Update(msg)
	assert.Nil(t, next, "a failed connect takes no further action")
	assert.True(t, a.isError)
	assert.Contains(t, a.View(), "Error: connect:")
}

func TestDisconnectKey(t *testing.T) {
	a, w := newTestApp(t, &heldGateway{}, devkey.ID)
	connected(t, a, w)

	cmd := press(a, "d")
	require.NotNil(t, cmd)
	a.Update(cmd())
	assert.False(t, w.IsConnected())
}

func TestSubmit_BlankIsNoop(t *testing.T) {
	gw := &heldGateway{}
	a, w := newTestApp(t, gw, devkey.ID)
	connected(t, a, w)

	press(a, "i")
	require.Equal(t, focusInput, a.focus)
	typeText(a, "   ")
	press(a, "enter")

	assert.Equal(t, models.SubmissionIdle, a.ctrl.Snapshot().Submission.Status)
	assert.Equal(t, focusInput, a.focus)
	assert.False(t, a.isError)
}

func TestSubmit_CreatesTaskAndClearsOnSuccess(t *testing.T) {
	gw := &heldGateway{}
	a, w := newTestApp(t, gw, devkey.ID)
	connected(t, a, w)

	press(a, "i")
	typeText(a, "buy milk")
	press(a, "enter")

	snap := a.ctrl.Snapshot()
	assert.Equal(t, models.SubmissionPending, snap.Submission.Status)
	assert.Equal(t, "buy milk", snap.Submission.Description)
	assert.Equal(t, focusList, a.focus)
	assert.Equal(t, "buy milk", a.input.Value(), "input keeps its text until the submission succeeds")

	snap.Submission.Status = models.SubmissionSucceeded
	snap.ShowSuccess = true
	snap.ClearInput++
	a.Update(snapshotMsg{snap: snap})
	assert.Empty(t, a.input.Value())
	assert.Contains(t, a.View(), "Task created!")
}

func TestBusy_DisablesInputAndComplete(t *testing.T) {
	gw := &heldGateway{tasks: []models.Task{{Description: "walk dog", Timestamp: 1700000000}}}
	a, w := newTestApp(t, gw, devkey.ID)
	connected(t, a, w)

	snap := a.ctrl.Snapshot()
	snap.Submission = models.Submission{Kind: models.SubmissionCreate, Status: models.SubmissionPending}
	a.Update(snapshotMsg{snap: snap})

	press(a, "i")
	assert.Equal(t, focusList, a.focus)
	press(a, "x")
	assert.Equal(t, models.SubmissionIdle, a.ctrl.Snapshot().Submission.Status)
	assert.Contains(t, a.View(), "Waiting for wallet signature")
}

func TestComplete_SelectedTask(t *testing.T) {
	gw := &heldGateway{
		tasks: []models.Task{
			{Description: "first", Timestamp: 1700000000},
			{Description: "second", Timestamp: 1700000100},
		},
	}
	a, w := newTestApp(t, gw, devkey.ID)
	connected(t, a, w)

	press(a, "j")
	require.Equal(t, 1, a.selectedIdx)
	press(a, "x")

	snap := a.ctrl.Snapshot()
	assert.Equal(t, models.SubmissionPending, snap.Submission.Status)
	assert.Equal(t, models.SubmissionComplete, snap.Submission.Kind)
	assert.Equal(t, 1, snap.Submission.Index)
}

func TestComplete_AlreadyCompleted(t *testing.T) {
	gw := &heldGateway{tasks: []models.Task{{Description: "done", Completed: true}}, completed: 1}
	a, w := newTestApp(t, gw, devkey.ID)
	connected(t, a, w)

	press(a, "x")
	assert.Equal(t, models.SubmissionIdle, a.ctrl.Snapshot().Submission.Status)
	assert.Contains(t, a.message, "already completed")
}

func TestFailedSubmissionShown(t *testing.T) {
	a, w := newTestApp(t, &heldGateway{}, devkey.ID)
	connected(t, a, w)

	snap := a.ctrl.Snapshot()
	snap.Submission = models.Submission{Status: models.SubmissionFailed, Err: chain.ErrSignatureRejected}
	a.Update(snapshotMsg{snap: snap})
	assert.Contains(t, a.View(), "signature rejected by user")
}

func TestSignPrompt(t *testing.T) {
	req := wallet.SignRequest{
		From:    common.HexToAddress("0x1234567890000000000000000000000000005678"),
		To:      common.HexToAddress("0x1234567890000000000000000000000000009999"),
		Nonce:   3,
		ChainID: big.NewInt(1337),
	}

	t.Run("reject", func(t *testing.T) {
		a, _ := newTestApp(t, &heldGateway{}, devkey.ID)
		a.Update(hostReadyMsg{})
		reply := make(chan error, 1)
		a.Update(signRequestMsg{req: req, reply: reply})
		assert.Contains(t, a.View(), "Signature request")

		press(a, "n")
		assert.ErrorIs(t, <-reply, chain.ErrSignatureRejected)
		assert.NotContains(t, a.View(), "Signature request")
	})

	t.Run("approve", func(t *testing.T) {
		a, _ := newTestApp(t, &heldGateway{}, devkey.ID)
		a.Update(hostReadyMsg{})
		reply := make(chan error, 1)
		a.Update(signRequestMsg{req: req, reply: reply})

		press(a, "q")
		assert.NotNil(t, a.signing, "other keys leave the prompt open")
		press(a, "y")
		assert.NoError(t, <-reply)
		assert.Nil(t, a.signing)
	})
}

func TestApprove_WithoutProgramRejects(t *testing.T) {
	a, _ := newTestApp(t, &heldGateway{}, devkey.ID)
	err := a.approve(context.Background(), wallet.SignRequest{})
	assert.ErrorIs(t, err, chain.ErrSignatureRejected)
}

func TestQuit(t *testing.T) {
	a, _ := newTestApp(t, &heldGateway{}, devkey.ID)
	cmd := press(a, "ctrl+c")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0x1234...5678", shortAddress(common.HexToAddress("0x1234567890000000000000000000000000005678")))
	assert.Equal(t, "Nov 14, 2023, 10:13 PM", formatTimestamp(1700000000, time.UTC))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "short", truncate("short", 10))

	accented := truncate(strings.Repeat("é", 30), 20)
	assert.True(t, utf8.ValidString(accented))
	assert.True(t, strings.HasPrefix(accented, "éé"))
	assert.True(t, strings.HasSuffix(accented, "..."))
	assert.LessOrEqual(t, runewidth.StringWidth(accented), 20)

	wide := truncate(strings.Repeat("日", 10), 9)
	assert.True(t, utf8.ValidString(wide))
	assert.LessOrEqual(t, runewidth.StringWidth(wide), 9)
}
