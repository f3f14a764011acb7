// internal/tui/search_view.go
//
// Person search overlay. Keystrokes hit the reconciler immediately; the
// backend search fires behind the debounce window and settles through
// generation-checked messages, so a reordered slow response can never
// replace the results of a newer query.

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tallgrass/crewdeck/internal/models"
	"github.com/tallgrass/crewdeck/internal/search"
	"github.com/tallgrass/crewdeck/internal/week"
)

type debounceFiredMsg struct{ gen uint64 }

type searchOutcomeMsg struct{ outcome search.Outcome }

type searchView struct {
	app        *App
	reconciler *search.Reconciler
	input      textinput.Model
}

func newSearchView(app *App, asyncJobs bool) *searchView {
	cfg := app.config
	reconciler := search.New(app.backend, app.logger, search.Options{
		Debounce:           cfg.DebounceWindow(),
		MaxResults:         cfg.MaxSearchResults(),
		LargePoolThreshold: cfg.LargePoolThreshold(),
		PollInterval:       cfg.PollInterval(),
		PollTimeout:        cfg.PollTimeout(),
		AsyncJobs:          asyncJobs,
		Department:         cfg.Department(),
	})
	input := textinput.New()
	input.Placeholder = "name or skills, e.g. \"revit who can do 20 hours\""
	input.CharLimit = 120
	input.Width = 48
	return &searchView{app: app, reconciler: reconciler, input: input}
}

// Open prepares the overlay for a fresh search session.
func (v *searchView) Open() tea.Cmd {
	v.reconciler.Cancel()
	v.input.SetValue("")
	return v.input.Focus()
}

func (v *searchView) close() {
	v.reconciler.Cancel()
	v.input.Blur()
	v.app.state = stateBoard
}

func (v *searchView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case debounceFiredMsg:
		return v.timerFired(msg.gen)
	case searchOutcomeMsg:
		if v.reconciler.Apply(msg.outcome) {
			if err := v.reconciler.Err(); err != nil {
				v.app.logger.Printf("tui: search failed: %v", err)
			}
		}
		return nil
	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return cmd
}

func (v *searchView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.close()
		return nil
	case "up":
		v.reconciler.MoveUp()
		return nil
	case "down":
		v.reconciler.MoveDown()
		return nil
	case "enter":
		if result, ok := v.reconciler.Selected(); ok {
			return v.assignSelected(result)
		}
		return nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	if v.input.Value() != v.reconciler.Query() {
		gen := v.reconciler.Input(v.input.Value())
		debounce := tea.Tick(v.reconciler.Debounce(), func(time.Time) tea.Msg {
			return debounceFiredMsg{gen: gen}
		})
		return tea.Batch(cmd, debounce)
	}
	return cmd
}

// timerFired checks the firing's generation against the reconciler and, when
// still live, runs the blocking search off the event loop.
func (v *searchView) timerFired(gen uint64) tea.Cmd {
	projectID := ""
	if project, ok := v.app.store.Selected(); ok {
		projectID = project.ID
	}
	req, ok := v.reconciler.TimerFired(gen, projectID)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return searchOutcomeMsg{outcome: v.reconciler.Execute(context.Background(), req)}
	}
}

// assignSelected staffs the chosen person on the selected project with zero
// hours; hour allocation happens afterwards in the assignment panel.
func (v *searchView) assignSelected(result models.SearchResult) tea.Cmd {
	personID := result.ID
	hours := map[string]float64{week.CanonicalKey(time.Now()): 0}
	v.close()
	v.app.focus = focusPanel
	v.app.busy = true
	v.app.journal.Info("Assigning %s", result.Name)
	return func() tea.Msg {
		err := v.app.assign.Create(context.Background(), personID, "", hours)
		return mutationDoneMsg{err: err}
	}
}

func (v *searchView) View() string {
	lines := []string{
		panelTitleStyle.Render("FIND PEOPLE"),
		v.input.View(),
		"",
	}

	switch v.reconciler.State() {
	case search.StateDebouncing, search.StateInFlight:
		lines = append(lines, dimStyle.Render(v.app.spin.View()+" searching..."))
	case search.StateSettled:
		results := v.reconciler.Results()
		if err := v.reconciler.Err(); err != nil {
			lines = append(lines, errStyle.Render("⚠ search failed — check the log"))
		} else if len(results) == 0 {
			lines = append(lines, dimStyle.Render("No matches."))
		}
		if v.reconciler.Degraded() {
			lines = append(lines, warnStyle.Render("⚠ partial data — availability or skill scores missing"))
		}
		for i, result := range results {
			lines = append(lines, renderSearchRow(result, i == v.reconciler.Selection()))
		}
	default:
		lines = append(lines, dimStyle.Render("Type a name, or describe the skills you need."))
	}

	lines = append(lines, "", dimStyle.Render("↑/↓ choose · enter assign · esc close"))
	return strings.Join(lines, "\n")
}

func renderSearchRow(result models.SearchResult, selected bool) string {
	parts := []string{result.Name}
	if result.Department != "" {
		parts = append(parts, result.Department)
	}
	parts = append(parts, fmt.Sprintf("%.0fh free (%.0f%%)", result.AvailableHours, result.UtilizationPercent))
	if result.HasSkillMatch {
		parts = append(parts, fmt.Sprintf("skill %.0f", result.SkillMatchScore))
	}
	row := strings.Join(parts, " · ")
	if selected {
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Render("› " + row)
	}
	return "  " + row
}
