package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tallgrass/crewdeck/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	logStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

// View renders the current state to a string.
func (a *App) View() string {
	leftWidth := a.leftWidth()
	rightWidth := max(36, a.widthOr(100)/3)

	var mainContent string
	if a.state == stateSearch && a.searchView != nil {
		mainContent = a.searchView.View()
	} else {
		mainContent = a.projectList.View()
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		a.renderListHeader(leftWidth-4),
		"",
		mainContent,
	)
	leftBox := boxStyle.Width(max(30, leftWidth)).Render(left)
	rightBox := boxStyle.Width(max(30, rightWidth)).Render(a.panel.View(rightWidth - 4))
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)

	sections := []string{headerStyle.Render("⬡ CREWDECK"), body}
	if logPanel := a.renderJournalPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, a.renderFooter())
	return strings.Join(sections, "\n")
}

func (a *App) renderListHeader(width int) string {
	sortLabel := string(a.sortDesc.Key)
	if a.sortDesc.Direction == store.Descending {
		sortLabel += " ↓"
	} else {
		sortLabel += " ↑"
	}
	if a.sortDesc.Key.IsExternal() && !a.resolver.ExternalKeysLoaded(a.sortDesc.Key) {
		sortLabel += " (loading)"
	}
	line := fmt.Sprintf("Filter: %s · Sort: %s · Page %d (%d total)",
		a.filter.label(), sortLabel, a.page+1, a.total)
	if err := a.store.Metadata().Err(); err != nil {
		line += "\n" + warnStyle.Render("⚠ metadata unavailable — metadata filters match nothing · R to retry")
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(line)
}

func (a *App) renderJournalPanel() string {
	lines := a.journal.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	head := panelTitleStyle.Render("ACTIVITY")
	body := logStyle.Render(strings.Join(lines, "\n"))
	return boxStyle.Render(head + "\n" + body)
}

func (a *App) renderFooter() string {
	var parts []string
	if a.busy || a.loading {
		parts = append(parts, a.spin.View()+" working")
	}
	if a.errMsg != "" {
		parts = append(parts, errStyle.Render("⚠ "+a.errMsg))
	}
	if a.statusMsg != "" {
		parts = append(parts, a.statusMsg)
	}
	parts = append(parts, dimStyle.Render(
		"enter select · / search · tab focus · o direction · O sort key · f filter · n/p page · q quit"))
	return lipgloss.NewStyle().MarginTop(1).Render(strings.Join(parts, "    "))
}

func (a *App) widthOr(fallback int) int {
	if a.width > 0 {
		return a.width
	}
	return fallback
}
