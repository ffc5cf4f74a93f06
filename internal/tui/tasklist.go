package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fentz26/tasktrack/internal/models"
)

// timestampLayout renders task creation times, e.g. "Nov 14, 2023, 10:13 PM".
const timestampLayout = "Jan 2, 2006, 03:04 PM"

var (
	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // Red
	statusWorking   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // Cyan

	statCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 2).
			Align(lipgloss.Center)

	statValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(fgColor)
)

func formatTimestamp(ts uint64, loc *time.Location) string {
	return time.Unix(int64(ts), 0).In(loc).Format(timestampLayout)
}

func shortAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

func formatTaskStatus(t models.Task) string {
	if t.Completed {
		return statusCompleted.Render("● DONE")
	}
	return statusPending.Render("○ TODO")
}

func formatTaskStatusPlain(t models.Task) string {
	if t.Completed {
		return "●"
	}
	return "○"
}

func (a *App) renderStats() string {
	total := len(a.snap.Tasks)
	card := func(label string, value uint64, color lipgloss.Color) string {
		return statCardStyle.Render(
			statValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value)) + "\n" +
				lipgloss.NewStyle().Foreground(mutedColor).Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total", uint64(total), fgColor), " ",
		card("Completed", a.snap.CompletedCount, successColor), " ",
		card("Pending", a.snap.PendingCount(), warningColor),
	)
}

func (a *App) renderTaskList(height int) string {
	if len(a.snap.Tasks) == 0 {
		return "\n  No tasks yet. Press i to add one.\n"
	}

	var lines []string
	for i, task := range a.snap.Tasks {
		when := lipgloss.NewStyle().Foreground(mutedColor).Render(formatTimestamp(task.Timestamp, a.loc))

		if i == a.selectedIdx && a.focus == focusList {
			line := selectedStyle.Render(fmt.Sprintf("▶ %s  %s", formatTaskStatusPlain(task), task.Description))
			lines = append(lines, line+"  "+when)
		} else {
			description := task.Description
			if task.Completed {
				description = lipgloss.NewStyle().Strikethrough(true).Foreground(mutedColor).Render(description)
			}
			line := taskItemStyle.Render(fmt.Sprintf("  %s  %s", formatTaskStatus(task), description))
			lines = append(lines, line+"  "+when)
		}
	}

	// Limit visible lines
	if height > 0 && len(lines) > height {
		start := a.selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}
