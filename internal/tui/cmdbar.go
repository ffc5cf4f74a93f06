package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/tasktrack/internal/models"
)

var (
	disabledInputStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(mutedColor).
				Foreground(mutedColor).
				Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	signPromptStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(warningColor).
			Padding(0, 1)
)

// newDescriptionInput creates the new-task input.
func newDescriptionInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "What needs doing?"
	ti.Prompt = promptStyle.Render("+ ")
	ti.CharLimit = 256
	ti.Width = 60
	return ti
}

// renderInput draws the description input, greyed out while a submission
// is in flight.
func (a *App) renderInput() string {
	if a.snap.Busy() {
		return disabledInputStyle.Render("+ " + a.input.Value())
	}
	if a.focus == focusInput {
		return inputBoxStyle.Render(a.input.View())
	}
	return disabledInputStyle.Render(helpStyle.Render("Press i to add a task"))
}

// renderSubmission describes the current submission.
func (a *App) renderSubmission() string {
	sub := a.snap.Submission
	switch sub.Status {
	case models.SubmissionPending:
		return statusWorking.Render(a.spinner.View() + " Waiting for wallet signature...")
	case models.SubmissionConfirming:
		hash := ""
		if sub.TxHash != nil {
			hash = " " + shortHash(sub.TxHash.Hex())
		}
		return statusWorking.Render(a.spinner.View() + " Confirming transaction" + hash + "...")
	case models.SubmissionSucceeded:
		if !a.snap.ShowSuccess {
			return ""
		}
		if sub.Kind == models.SubmissionComplete {
			return statusCompleted.Render("✓ Task completed!")
		}
		return statusCompleted.Render("✓ Task created!")
	case models.SubmissionFailed:
		return statusFailed.Render(fmt.Sprintf("✗ Transaction failed: %v", sub.Err))
	default:
		return ""
	}
}

// renderSignPrompt asks the user to approve the outstanding signature.
func (a *App) renderSignPrompt() string {
	if a.signing == nil {
		return ""
	}
	req := a.signing.req
	return signPromptStyle.Render(fmt.Sprintf(
		"Signature request\nFrom:  %s\nTo:    %s\nNonce: %d\nChain: %s\n\n%s",
		shortAddress(req.From), shortAddress(req.To), req.Nonce, req.ChainID,
		promptStyle.Render("y: sign   n: reject"),
	))
}

func shortHash(h string) string {
	if len(h) < 12 {
		return h
	}
	return h[:6] + "..." + h[len(h)-4:]
}
