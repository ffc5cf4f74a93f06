package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))
)

// renderTaskDetail shows the selected task.
func (a *App) renderTaskDetail() string {
	if a.selectedIdx < 0 || a.selectedIdx >= len(a.snap.Tasks) {
		return ""
	}
	t := a.snap.Tasks[a.selectedIdx]

	var b strings.Builder
	b.WriteString(a.renderField("Task", fmt.Sprintf("#%d", a.selectedIdx)))
	b.WriteString(a.renderField("Status", formatTaskStatus(t)))
	b.WriteString(a.renderField("Created", formatTimestamp(t.Timestamp, a.loc)))
	b.WriteString(a.renderField("Description", truncate(t.Description, max(20, a.contentWidth()-16))))
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (a *App) renderField(label, value string) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

// truncate shortens s to at most n terminal cells.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, n, "...")
}
