// internal/tui/assignment_panel.go
//
// Right-hand panel: the selected project's assignments, current-week hour
// editing, delete confirmation and the status picker. Failed mutations keep
// the edit state on screen so the user can retry without retyping.

package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tallgrass/crewdeck/internal/models"
	"github.com/tallgrass/crewdeck/internal/week"
)

type panelMode int

const (
	panelBrowse panelMode = iota
	panelEditHours
	panelConfirmDelete
)

type assignmentPanel struct {
	app    *App
	mode   panelMode
	cursor int
	input  textinput.Model
	target string // assignment under edit or pending delete
}

func newAssignmentPanel(app *App) *assignmentPanel {
	input := textinput.New()
	input.Placeholder = "hours"
	input.CharLimit = 6
	input.Width = 8
	return &assignmentPanel{app: app, input: input}
}

func (p *assignmentPanel) reset() {
	p.mode = panelBrowse
	p.cursor = 0
	p.target = ""
	p.input.SetValue("")
	p.input.Blur()
}

// capturing reports whether the panel owns the keyboard regardless of focus.
func (p *assignmentPanel) capturing() bool {
	return p.mode != panelBrowse
}

func (p *assignmentPanel) Update(msg tea.Msg) tea.Cmd {
	keyMsg, isKey := msg.(tea.KeyMsg)
	if !isKey {
		if p.mode == panelEditHours {
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return cmd
		}
		return nil
	}

	switch p.mode {
	case panelEditHours:
		return p.updateEdit(keyMsg)
	case panelConfirmDelete:
		return p.updateConfirm(keyMsg)
	}
	return p.updateBrowse(keyMsg)
}

func (p *assignmentPanel) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	assignments := p.app.assign.Assignments()
	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(assignments)-1 {
			p.cursor++
		}
	case "e":
		if current, ok := p.selected(assignments); ok {
			p.mode = panelEditHours
			p.target = current.ID
			weekKey := week.CanonicalKey(time.Now())
			p.input.SetValue(strconv.FormatFloat(current.Hours(weekKey), 'f', -1, 64))
			p.input.Focus()
		}
	case "x":
		if current, ok := p.selected(assignments); ok {
			p.mode = panelConfirmDelete
			p.target = current.ID
		}
	case "1", "2", "3", "4":
		if project, ok := p.app.store.Selected(); ok {
			idx := int(msg.String()[0] - '1')
			next := models.KnownStatuses[idx]
			if next != project.Status {
				return p.app.setStatus(project.ID, next)
			}
		}
	}
	return nil
}

func (p *assignmentPanel) updateEdit(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		p.app.assign.ClearErr()
		p.reset()
		return nil
	case "enter":
		hours, err := strconv.ParseFloat(strings.TrimSpace(p.input.Value()), 64)
		if err != nil || hours < 0 {
			p.app.statusMsg = "Enter a non-negative hour count"
			return nil
		}
		return p.commitHours(hours)
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

func (p *assignmentPanel) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		assignmentID := p.target
		p.reset()
		p.app.busy = true
		return func() tea.Msg {
			err := p.app.assign.Delete(context.Background(), assignmentID, true)
			return mutationDoneMsg{err: err}
		}
	case "n", "N", "esc":
		p.reset()
	}
	return nil
}

// commitHours submits the current-week hour edit. The edit state is only
// cleared once the mutation settles successfully.
func (p *assignmentPanel) commitHours(hours float64) tea.Cmd {
	assignments := p.app.assign.Assignments()
	var current models.Assignment
	found := false
	for _, assignment := range assignments {
		if assignment.ID == p.target {
			current = assignment
			found = true
			break
		}
	}
	if !found {
		p.reset()
		return nil
	}
	updated := current.CloneHours()
	updated[week.CanonicalKey(time.Now())] = hours
	assignmentID := p.target
	p.app.busy = true
	return func() tea.Msg {
		err := p.app.assign.UpdateHours(context.Background(), assignmentID, updated)
		return mutationDoneMsg{err: err}
	}
}

// mutationSettled is called on the update loop when a mutation command
// finishes.
func (p *assignmentPanel) mutationSettled(err error) {
	if err != nil {
		// Keep the edit state; the coordinator holds the banner message.
		return
	}
	if p.mode == panelEditHours {
		p.reset()
	}
	assignments := p.app.assign.Assignments()
	if p.cursor >= len(assignments) && p.cursor > 0 {
		p.cursor = len(assignments) - 1
	}
}

func (p *assignmentPanel) selected(assignments []models.Assignment) (models.Assignment, bool) {
	if p.cursor < 0 || p.cursor >= len(assignments) {
		return models.Assignment{}, false
	}
	return assignments[p.cursor], true
}

func (p *assignmentPanel) View(width int) string {
	project, ok := p.app.store.Selected()
	if !ok {
		return panelTitleStyle.Render("ASSIGNMENTS") + "\n" +
			dimStyle.Render("Select a project to staff it.")
	}
	weekKey := week.CanonicalKey(time.Now())
	lines := []string{
		panelTitleStyle.Render(fmt.Sprintf("ASSIGNMENTS · %s", project.Name)),
		dimStyle.Render(fmt.Sprintf("status: %s · week %s", project.Status, weekKey)),
		"",
	}

	assignments := p.app.assign.Assignments()
	if len(assignments) == 0 {
		lines = append(lines, dimStyle.Render("No assignments. Press / to search people."))
	}
	for i, assignment := range assignments {
		label := assignment.Role
		if !assignment.IsPlaceholder() {
			label = assignment.PersonID
			if assignment.Role != "" {
				label += " (" + assignment.Role + ")"
			}
		} else if label == "" {
			label = "unfilled role"
		}
		row := fmt.Sprintf("%s · %sh this week · %sh total",
			label,
			strconv.FormatFloat(assignment.Hours(weekKey), 'f', -1, 64),
			strconv.FormatFloat(totalHours(assignment), 'f', -1, 64),
		)
		style := lipgloss.NewStyle()
		if i == p.cursor && p.app.focus == focusPanel {
			style = style.Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
			row = "› " + row
		} else {
			row = "  " + row
		}
		lines = append(lines, style.Render(row))
	}

	switch p.mode {
	case panelEditHours:
		lines = append(lines, "", fmt.Sprintf("Hours for week %s: %s", weekKey, p.input.View()),
			dimStyle.Render("enter save · esc cancel"))
	case panelConfirmDelete:
		lines = append(lines, "", warnStyle.Render("Delete this assignment? y/n"))
	}

	for _, warning := range p.app.assign.Warnings() {
		lines = append(lines, warnStyle.Render("⚠ "+warning))
	}
	if err := p.app.assign.Err(); err != nil {
		lines = append(lines, errStyle.Render("⚠ "+err.Error()))
	}

	if p.mode == panelBrowse {
		lines = append(lines, "", dimStyle.Render("e edit hours · x delete · 1-4 status"))
	}
	return lipgloss.NewStyle().Width(max(24, width)).Render(strings.Join(lines, "\n"))
}

func totalHours(assignment models.Assignment) float64 {
	keys := make([]string, 0, len(assignment.WeeklyHours))
	for key := range assignment.WeeklyHours {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var total float64
	for _, key := range keys {
		total += assignment.WeeklyHours[key]
	}
	return total
}
