package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/fentz26/tasktrack/internal/models"
	"github.com/fentz26/tasktrack/internal/tracker"
	"github.com/fentz26/tasktrack/internal/wallet"
)

// focus is the part of the screen receiving keys.
type focus int

const (
	focusList focus = iota
	focusInput
)

// keyMap holds the list-mode bindings.
type keyMap struct {
	Connect    key.Binding
	Disconnect key.Binding
	Up         key.Binding
	Down       key.Binding
	Complete   key.Binding
	Refresh    key.Binding
	NewTask    key.Binding
	Approve    key.Binding
	Reject     key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Connect:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
	Disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Complete:   key.NewBinding(key.WithKeys("x", " "), key.WithHelp("x/space", "complete")),
	Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	NewTask:    key.NewBinding(key.WithKeys("tab", "i"), key.WithHelp("i/tab", "new task")),
	Approve:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "sign")),
	Reject:     key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "reject")),
	Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

// hostReadyMsg is sent once the host handshake has finished.
type hostReadyMsg struct {
	context *models.HostContext
}

// snapshotMsg carries a controller state change.
type snapshotMsg struct {
	snap tracker.Snapshot
}

// walletMsg reports a finished connect or disconnect.
type walletMsg struct{}

// signRequestMsg asks the user to approve a signature. The answer goes to
// reply exactly once.
type signRequestMsg struct {
	req   wallet.SignRequest
	reply chan error
}

// errMsg is a local error shown in the message line, e.g. a failed connect.
type errMsg struct {
	err error
}
