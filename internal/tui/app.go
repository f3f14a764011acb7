// internal/tui/app.go
//
// This is the main TUI for crewdeck. It uses bubbletea, which follows The
// Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// Every network boundary is a tea.Cmd, so all cache reads and writes happen
// on the single update loop; that loop is the "same tick" of the optimistic
// status contract.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tallgrass/crewdeck/internal/api"
	"github.com/tallgrass/crewdeck/internal/assign"
	"github.com/tallgrass/crewdeck/internal/config"
	"github.com/tallgrass/crewdeck/internal/journal"
	"github.com/tallgrass/crewdeck/internal/logging"
	"github.com/tallgrass/crewdeck/internal/models"
	"github.com/tallgrass/crewdeck/internal/search"
	"github.com/tallgrass/crewdeck/internal/status"
	"github.com/tallgrass/crewdeck/internal/store"
)

// appState represents which "screen" we're on.
type appState int

const (
	stateBoard  appState = iota // Project list + assignment panel
	stateSearch                 // Person search overlay
)

type boardFocus int

const (
	focusProjects boardFocus = iota
	focusPanel
)

// filterMode cycles the metadata-backed filter chips.
type filterMode int

const (
	filterNone filterMode = iota
	filterStaffed
	filterUpcoming
)

func (f filterMode) label() string {
	switch f {
	case filterStaffed:
		return "staffed"
	case filterUpcoming:
		return "upcoming deliverable"
	default:
		return "all"
	}
}

type capabilitiesMsg struct {
	caps api.Capabilities
	err  error
}

type projectsLoadedMsg struct {
	key  string
	page api.ProjectPage
	err  error
}

type metadataMsg struct{ err error }

type deliverableKeysMsg struct {
	next map[string]string
	prev map[string]string
	err  error
}

type projectSelectedMsg struct{ err error }

type mutationDoneMsg struct{ err error }

type statusPushedMsg struct {
	cmd *status.Command
	err error
}

type busEventMsg struct {
	event store.Event
	ok    bool
}

// AppOption customizes App construction for tests.
type AppOption func(*App)

// WithBackend injects a backend implementation other than the HTTP client.
func WithBackend(backend Backend) AppOption {
	return func(a *App) {
		if backend != nil {
			a.backend = backend
		}
	}
}

// Backend joins every collaborator slice the board needs.
type Backend interface {
	assign.Backend
	search.Backend
	status.Backend
	Capabilities(ctx context.Context) (api.Capabilities, error)
	ListProjects(ctx context.Context, opts api.ListProjectsOptions) (api.ProjectPage, error)
	FilterMetadata(ctx context.Context) (map[string]models.FilterMetadataEntry, error)
	DeliverableDates(ctx context.Context) (next, prev map[string]string, err error)
}

// App is the main application model. In bubbletea, this holds ALL our state.
type App struct {
	state   appState
	focus   boardFocus
	config  *config.Config
	logger  *logging.Logger
	journal *journal.Journal
	backend Backend

	store    *store.Store
	resolver *store.KeyResolver
	assign   *assign.Coordinator
	status   *status.Sync

	projectList list.Model
	sortDesc    store.SortDescriptor
	filter      filterMode
	page        int
	pageKey     string
	total       int

	searchView *searchView
	panel      *assignmentPanel

	busSub  store.BusSubscription
	spin    spinner.Model
	busy    bool
	loading bool

	statusMsg string
	errMsg    string

	width  int
	height int
}

// projectItem implements list.Item for project rows.
type projectItem struct {
	project models.Project
	meta    string
}

func (i projectItem) Title() string {
	return fmt.Sprintf("%s · %s", i.project.Name, i.project.Status)
}
func (i projectItem) Description() string {
	parts := []string{i.project.Client, i.project.ProjectNumber}
	if i.meta != "" {
		parts = append(parts, i.meta)
	}
	return strings.Join(parts, " · ")
}
func (i projectItem) FilterValue() string { return i.project.Name }

// NewApp creates the application model.
func NewApp(workDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(workDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(workDir)
	if err != nil {
		return nil, err
	}
	jnl, err := journal.New(filepath.Join(cfg.LogsDir(), "activity.log"))
	if err != nil {
		return nil, err
	}

	projectList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	projectList.Title = "⬡ PROJECTS"
	projectList.SetShowStatusBar(false)
	projectList.SetFilteringEnabled(false)

	app := &App{
		state:       stateBoard,
		focus:       focusProjects,
		config:      cfg,
		logger:      logger,
		journal:     jnl,
		projectList: projectList,
		sortDesc:    store.SortDescriptor{Key: store.SortByName},
		resolver:    store.NewKeyResolver(),
		spin:        spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.backend == nil {
		app.backend = api.NewClient(cfg.BaseURL(), cfg.APIKey(), api.WithTimeout(cfg.APITimeout()))
	}

	app.store = store.New(app.backend.FilterMetadata, logger)
	app.assign = assign.New(app.backend, app.store, logger, jnl)
	app.status = status.New(app.backend, app.store, logger, jnl)
	app.panel = newAssignmentPanel(app)
	app.busSub = app.store.Bus().Subscribe(store.TopicAssignmentsChanged)
	jnl.Info("Session opened")
	return app, nil
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchCapabilities(),
		a.loadProjects(),
		a.loadMetadata(),
		a.loadDeliverableKeys(),
		a.waitBusEvent(),
		a.spin.Tick,
	)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.projectList.SetSize(max(0, a.leftWidth()-4), max(0, msg.Height-14))
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case capabilitiesMsg:
		if msg.err != nil {
			a.logger.Printf("tui: capabilities unavailable: %v", msg.err)
		}
		a.searchView = newSearchView(a, msg.caps.AsyncSkillMatch)
		return a, nil

	case projectsLoadedMsg:
		a.loading = false
		if msg.err != nil {
			a.errMsg = fmt.Sprintf("project list: %v", msg.err)
			return a, nil
		}
		a.errMsg = ""
		a.total = msg.page.Total
		a.store.SetPage(msg.key, msg.page.Items)
		a.refreshProjectItems()
		return a, nil

	case metadataMsg:
		if msg.err != nil {
			a.statusMsg = "Metadata unavailable — filters disabled, press R to retry"
		} else {
			a.statusMsg = ""
		}
		a.refreshProjectItems()
		return a, nil

	case deliverableKeysMsg:
		if msg.err != nil {
			a.logger.Printf("tui: deliverable dates unavailable: %v", msg.err)
			return a, nil
		}
		a.resolver.SetExternalKeys(store.SortByNextDeliverable, msg.next)
		a.resolver.SetExternalKeys(store.SortByPrevDeliverable, msg.prev)
		a.refreshProjectItems()
		return a, nil

	case projectSelectedMsg:
		a.busy = false
		if msg.err != nil {
			a.errMsg = msg.err.Error()
		}
		return a, nil

	case mutationDoneMsg:
		a.busy = false
		a.panel.mutationSettled(msg.err)
		a.refreshProjectItems()
		return a, nil

	case statusPushedMsg:
		a.busy = false
		// Rollback (if owed) happens here, on the update loop, so every
		// cache is restored within one tick.
		if err := a.status.Resolve(msg.cmd, msg.err); err != nil {
			a.errMsg = err.Error()
		}
		a.refreshProjectItems()
		return a, nil

	case busEventMsg:
		if !msg.ok {
			return a, nil
		}
		if msg.event.Topic == store.TopicAssignmentsChanged {
			a.refreshProjectItems()
		}
		return a, a.waitBusEvent()

	case debounceFiredMsg, searchOutcomeMsg:
		if a.searchView != nil {
			return a, a.searchView.Update(msg)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.routeToFocused(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.state == stateSearch && a.searchView != nil {
		return a, a.searchView.Update(msg)
	}
	if a.panel.capturing() {
		return a, a.panel.Update(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		a.teardown()
		return a, tea.Quit
	case "tab":
		if a.focus == focusProjects {
			a.focus = focusPanel
		} else {
			a.focus = focusProjects
		}
		return a, nil
	case "/":
		if a.searchView == nil {
			a.statusMsg = "Search unavailable until the backend answers"
			return a, nil
		}
		if _, ok := a.store.Selected(); !ok {
			a.statusMsg = "Select a project before searching people"
			return a, nil
		}
		a.state = stateSearch
		return a, a.searchView.Open()
	case "o":
		a.sortDesc = a.sortDesc.Toggle(a.sortDesc.Key)
		a.refreshProjectItems()
		return a, nil
	case "O":
		a.sortDesc = a.sortDesc.Toggle(nextSortKey(a.sortDesc.Key))
		a.refreshProjectItems()
		return a, a.maybeLoadExternalKeys()
	case "f":
		a.filter = (a.filter + 1) % 3
		a.refreshProjectItems()
		return a, nil
	case "R":
		a.statusMsg = "Retrying metadata..."
		return a, a.refetchMetadata()
	case "n":
		if (a.page+1)*a.config.PageSize() < a.total {
			a.page++
			return a, a.loadProjects()
		}
		return a, nil
	case "p":
		if a.page > 0 {
			a.page--
			return a, a.loadProjects()
		}
		return a, nil
	case "enter":
		if a.focus == focusProjects {
			return a, a.selectHighlighted()
		}
	}

	return a.routeToFocused(msg)
}

func (a *App) routeToFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if a.state == stateBoard {
		switch a.focus {
		case focusProjects:
			var cmd tea.Cmd
			a.projectList, cmd = a.projectList.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		case focusPanel:
			if cmd := a.panel.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}
	return a, tea.Batch(cmds...)
}

// selectHighlighted makes the highlighted project the current selection and
// loads its assignments.
func (a *App) selectHighlighted() tea.Cmd {
	item, ok := a.projectList.SelectedItem().(projectItem)
	if !ok {
		return nil
	}
	a.store.Select(item.project)
	a.focus = focusPanel
	a.panel.reset()
	a.busy = true
	a.journal.Info("Project %s selected", item.project.Name)
	return func() tea.Msg {
		err := a.assign.Load(context.Background(), item.project.ID)
		return projectSelectedMsg{err: err}
	}
}

// refreshProjectItems re-derives the visible list from the cached page:
// metadata filter, then sort, then render.
func (a *App) refreshProjectItems() {
	projects, ok := a.store.Page(a.pageKey)
	if !ok {
		return
	}
	meta := a.store.Metadata()
	filtered := make([]models.Project, 0, len(projects))
	for _, project := range projects {
		switch a.filter {
		case filterStaffed:
			// Unknown metadata conservatively fails the predicate.
			if !meta.HasAssignments(project.ID) {
				continue
			}
		case filterUpcoming:
			if !meta.HasFutureDeliverables(project.ID) {
				continue
			}
		}
		filtered = append(filtered, project)
	}
	sorted := a.resolver.Sort(filtered, a.sortDesc)
	items := make([]list.Item, len(sorted))
	for i, project := range sorted {
		summary := ""
		if entry, known := meta.Get(project.ID); known {
			summary = fmt.Sprintf("%d assignment(s)", entry.AssignmentCount)
			if entry.HasFutureDeliverables {
				summary += " · upcoming deliverable"
			}
		}
		items[i] = projectItem{project: project, meta: summary}
	}
	a.projectList.SetItems(items)
}

func (a *App) maybeLoadExternalKeys() tea.Cmd {
	if !a.sortDesc.Key.IsExternal() || a.resolver.ExternalKeysLoaded(a.sortDesc.Key) {
		return nil
	}
	return a.loadDeliverableKeys()
}

func (a *App) fetchCapabilities() tea.Cmd {
	return func() tea.Msg {
		caps, err := a.backend.Capabilities(context.Background())
		return capabilitiesMsg{caps: caps, err: err}
	}
}

func (a *App) loadProjects() tea.Cmd {
	a.loading = true
	key := fmt.Sprintf("page=%d|size=%d", a.page, a.config.PageSize())
	a.pageKey = key
	return func() tea.Msg {
		page, err := a.backend.ListProjects(context.Background(), api.ListProjectsOptions{
			Page:     a.page,
			PageSize: a.config.PageSize(),
		})
		return projectsLoadedMsg{key: key, page: page, err: err}
	}
}

func (a *App) loadMetadata() tea.Cmd {
	return func() tea.Msg {
		return metadataMsg{err: a.store.Metadata().EnsureLoaded(context.Background())}
	}
}

func (a *App) refetchMetadata() tea.Cmd {
	return func() tea.Msg {
		err := a.store.Metadata().Refetch(context.Background())
		if err == nil {
			a.journal.Info("Filter metadata refreshed")
		}
		return metadataMsg{err: err}
	}
}

func (a *App) loadDeliverableKeys() tea.Cmd {
	return func() tea.Msg {
		next, prev, err := a.backend.DeliverableDates(context.Background())
		return deliverableKeysMsg{next: next, prev: prev, err: err}
	}
}

func (a *App) waitBusEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-a.busSub.Events
		return busEventMsg{event: event, ok: ok}
	}
}

// setStatus changes a project's status optimistically. The snapshot and the
// apply happen here, synchronously; only the network push leaves the loop.
func (a *App) setStatus(projectID string, next models.ProjectStatus) tea.Cmd {
	cmd := a.status.Begin(projectID, next)
	a.refreshProjectItems()
	a.busy = true
	return func() tea.Msg {
		err := a.status.Push(context.Background(), cmd)
		return statusPushedMsg{cmd: cmd, err: err}
	}
}

func (a *App) teardown() {
	a.journal.Info("Session closed")
	a.busSub.Close()
	a.store.Teardown()
	_ = a.logger.Close()
}

func (a *App) leftWidth() int {
	width := a.width
	if width <= 0 {
		width = 100
	}
	right := max(36, width/3)
	left := width - right - 4
	if left < 40 {
		left = width - 4
	}
	return left
}

func nextSortKey(key store.SortKey) store.SortKey {
	order := []store.SortKey{
		store.SortByName,
		store.SortByClient,
		store.SortByNumber,
		store.SortByNextDeliverable,
		store.SortByPrevDeliverable,
	}
	for i, candidate := range order {
		if candidate == key {
			return order[(i+1)%len(order)]
		}
	}
	return store.SortByName
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
