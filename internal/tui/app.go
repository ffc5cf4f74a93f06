// Package tui provides the interactive terminal UI for tasktrack.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/tasktrack/internal/chain"
	"github.com/fentz26/tasktrack/internal/contract"
	"github.com/fentz26/tasktrack/internal/host"
	"github.com/fentz26/tasktrack/internal/models"
	"github.com/fentz26/tasktrack/internal/tracker"
	"github.com/fentz26/tasktrack/internal/wallet"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			PaddingLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	connectedStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(errorColor)
)

const handshakeTimeout = 5 * time.Second

// Options configures the TUI.
type Options struct {
	Controller *tracker.Controller
	Wallet     *wallet.Wallet
	Host       host.Host
	// Network is shown in the header.
	Network string
	// Connector is the connector used by the connect key.
	Connector string
	// ConfirmSignatures routes every signature through an in-app prompt.
	ConfirmSignatures bool
}

// App is the main TUI application model.
type App struct {
	ctrl      *tracker.Controller
	wallet    *wallet.Wallet
	host      host.Host
	network   string
	connector string

	updates     <-chan tracker.Snapshot
	unsubscribe func()
	send        func(tea.Msg)

	ready       bool
	profile     *models.UserProfile
	snap        tracker.Snapshot
	clearSeen   uint64
	focus       focus
	input       textinput.Model
	spinner     spinner.Model
	selectedIdx int
	width       int
	height      int
	message     string
	isError     bool
	signing     *signRequestMsg
	loc         *time.Location
}

// New creates a new TUI application.
func New(opts Options) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	updates, unsubscribe := opts.Controller.Subscribe()
	a := &App{
		ctrl:        opts.Controller,
		wallet:      opts.Wallet,
		host:        opts.Host,
		network:     opts.Network,
		connector:   opts.Connector,
		updates:     updates,
		unsubscribe: unsubscribe,
		snap:        opts.Controller.Snapshot(),
		input:       newDescriptionInput(),
		spinner:     sp,
		loc:         time.Local,
	}
	a.clearSeen = a.snap.ClearInput
	if opts.ConfirmSignatures {
		opts.Wallet.SetApprover(a.approve)
	}
	return a
}

// Run starts the TUI application.
func (a *App) Run() error {
	defer a.unsubscribe()
	p := tea.NewProgram(a, tea.WithAltScreen())
	a.send = p.Send
	_, err := p.Run()
	return err
}

// approve forwards a signature request to the UI and waits for the answer.
func (a *App) approve(ctx context.Context, req wallet.SignRequest) error {
	if a.send == nil {
		return chain.ErrSignatureRejected
	}
	reply := make(chan error, 1)
	a.send(signRequestMsg{req: req, reply: reply})
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.spinner.Tick,
		a.handshake(),
		a.waitForSnapshot(),
	)
}

func (a *App) handshake() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		defer cancel()
		return hostReadyMsg{context: host.Handshake(ctx, a.host)}
	}
}

func (a *App) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-a.updates
		if !ok {
			return nil
		}
		return snapshotMsg{snap: snap}
	}
}

func (a *App) connect() tea.Cmd {
	return func() tea.Msg {
		if _, err := a.wallet.Connect(context.Background(), a.connector); err != nil {
			return errMsg{err: fmt.Errorf("connect: %w", err)}
		}
		return walletMsg{}
	}
}

func (a *App) disconnect() tea.Cmd {
	return func() tea.Msg {
		a.wallet.Disconnect()
		return walletMsg{}
	}
}

func (a *App) refresh() tea.Cmd {
	return func() tea.Msg {
		a.ctrl.Refresh(context.Background())
		return nil
	}
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return a, tea.Quit
		}
		if a.signing != nil {
			return a, a.handleSignKey(msg)
		}
		if !a.ready {
			return a, nil
		}
		if a.focus == focusInput {
			return a, a.handleInputKey(msg)
		}
		return a, a.handleListKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = max(20, msg.Width-8)

	case hostReadyMsg:
		a.ready = true
		if msg.context != nil {
			a.profile = msg.context.User
		}

	case snapshotMsg:
		a.applySnapshot(msg.snap)
		return a, a.waitForSnapshot()

	case walletMsg:
		a.message = ""
		return a, a.refresh()

	case signRequestMsg:
		a.signing = &msg

	case errMsg:
		a.setError(msg.err)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleSignKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Approve):
		a.signing.reply <- nil
	case key.Matches(msg, keys.Reject):
		a.signing.reply <- chain.ErrSignatureRejected
	default:
		return nil
	}
	a.signing = nil
	return nil
}

func (a *App) handleListKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Connect):
		if a.wallet.IsConnected() {
			return nil
		}
		a.message = "Connecting..."
		a.isError = false
		return a.connect()

	case key.Matches(msg, keys.Disconnect):
		if !a.wallet.IsConnected() {
			return nil
		}
		return a.disconnect()

	case key.Matches(msg, keys.Up):
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case key.Matches(msg, keys.Down):
		if a.selectedIdx < len(a.snap.Tasks)-1 {
			a.selectedIdx++
		}

	case key.Matches(msg, keys.Complete):
		if a.snap.Busy() || len(a.snap.Tasks) == 0 {
			return nil
		}
		if a.snap.Tasks[a.selectedIdx].Completed {
			a.message = "Task already completed"
			a.isError = false
			return nil
		}
		if err := a.ctrl.CompleteTask(a.selectedIdx); err != nil {
			a.setError(err)
		}

	case key.Matches(msg, keys.Refresh):
		return a.refresh()

	case key.Matches(msg, keys.NewTask):
		if a.snap.Busy() {
			return nil
		}
		a.focus = focusInput
		return a.input.Focus()
	}
	return nil
}

func (a *App) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyTab:
		a.blurInput()
		return nil

	case tea.KeyEnter:
		err := a.ctrl.CreateTask(a.input.Value())
		switch {
		case errors.Is(err, contract.ErrEmptyDescription):
			return nil
		case err != nil:
			a.setError(err)
			return nil
		}
		a.message = ""
		a.blurInput()
		return nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return cmd
}

func (a *App) blurInput() {
	a.input.Blur()
	a.focus = focusList
}

func (a *App) applySnapshot(s tracker.Snapshot) {
	a.snap = s
	if s.ClearInput != a.clearSeen {
		a.clearSeen = s.ClearInput
		a.input.SetValue("")
	}
	if s.Busy() && a.focus == focusInput {
		a.blurInput()
	}
	if a.signing != nil && s.Submission.Status != models.SubmissionPending {
		a.signing = nil
	}
	if a.selectedIdx >= len(s.Tasks) {
		a.selectedIdx = max(0, len(s.Tasks)-1)
	}
}

func (a *App) setError(err error) {
	a.message = "Error: " + err.Error()
	a.isError = true
}

func (a *App) contentWidth() int {
	if a.width == 0 {
		return 80
	}
	return a.width
}

// View implements tea.Model
func (a *App) View() string {
	if !a.ready {
		return fmt.Sprintf("\n  %s Loading tasktrack...\n", a.spinner.View())
	}

	var b strings.Builder
	b.WriteString(a.renderHeader() + "\n\n")

	if a.snap.Account == nil {
		b.WriteString(panelStyle.Render("Connect a wallet to see your tasks.\nPress c to connect.") + "\n")
	} else {
		b.WriteString(a.renderStats() + "\n\n")

		listHeight := a.height - 22
		if listHeight < 3 {
			listHeight = 10
		}
		b.WriteString(a.renderTaskList(listHeight) + "\n\n")
		if detail := a.renderTaskDetail(); detail != "" {
			b.WriteString(detail + "\n")
		}
		if a.snap.ReadErr != nil {
			b.WriteString(lipgloss.NewStyle().Foreground(warningColor).Render("⚠ Could not load tasks: "+a.snap.ReadErr.Error()) + "\n")
		}
		if status := a.renderSubmission(); status != "" {
			b.WriteString(status + "\n")
		}
		b.WriteString(a.renderInput() + "\n")
	}

	if prompt := a.renderSignPrompt(); prompt != "" {
		b.WriteString("\n" + prompt + "\n")
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if a.isError {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString(msgStyle.Render(a.message) + "\n")
	}

	b.WriteString("\n" + a.renderStatusBar())
	return b.String()
}

func (a *App) renderHeader() string {
	header := titleStyle.Render("✅ TASKTRACK")
	if a.network != "" {
		header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render("["+a.network+"]")
	}
	if a.snap.Account != nil {
		header += "  " + connectedStyle.Render("● "+shortAddress(*a.snap.Account))
	} else {
		header += "  " + disconnectedStyle.Render("○ not connected")
	}
	if a.profile != nil && a.profile.Handle != "" {
		header += "  " + lipgloss.NewStyle().Foreground(secondaryColor).Render("@"+a.profile.Handle)
	}
	return header
}

func (a *App) renderStatusBar() string {
	var bindings []key.Binding
	switch {
	case a.signing != nil:
		bindings = []key.Binding{keys.Approve, keys.Reject}
	case a.focus == focusInput:
		return statusBarStyle.Width(a.contentWidth()).Render("enter: add task | esc: back | ctrl+c: quit")
	case a.snap.Account == nil:
		bindings = []key.Binding{keys.Connect, keys.Quit}
	default:
		bindings = []key.Binding{keys.NewTask, keys.Complete, keys.Up, keys.Down, keys.Refresh, keys.Disconnect, keys.Quit}
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return statusBarStyle.Width(a.contentWidth()).Render(strings.Join(parts, " | "))
}
