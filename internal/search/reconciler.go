// internal/search/reconciler.go
//
// Debounced person/role search with backend enrichment. The reconciler is a
// state machine driven from the UI event loop: keystrokes update the raw
// query immediately and arm the debounce timer; when the timer's firing is
// still live the search executes off-loop; the outcome is applied only if
// its generation is still current. Stale outcomes are discarded
// unconditionally, so the rendered result set always corresponds to the
// most recent input regardless of response arrival order.

package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/tallgrass/crewdeck/internal/api"
	"github.com/tallgrass/crewdeck/internal/models"
	"github.com/tallgrass/crewdeck/internal/week"
)

// State is the reconciler's position in the search lifecycle.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateInFlight
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateDebouncing:
		return "debouncing"
	case StateInFlight:
		return "in-flight"
	case StateSettled:
		return "settled"
	default:
		return "idle"
	}
}

// Logger matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Backend is the slice of the staffing API the reconciler needs.
type Backend interface {
	Directory(ctx context.Context, department string) ([]models.Person, error)
	GetAvailability(ctx context.Context, projectID, weekKey string, opts api.AvailabilityOptions) ([]models.AvailabilityRow, error)
	SkillMatch(ctx context.Context, skills []string, opts api.SkillMatchOptions) ([]api.SkillScore, error)
	SkillMatchAsync(ctx context.Context, skills []string, opts api.SkillMatchOptions) (string, error)
	PollJob(ctx context.Context, jobID string, interval, timeout time.Duration) ([]api.SkillScore, error)
}

// Options tunes the reconciler. Zero values take the defaults below.
type Options struct {
	Debounce           time.Duration
	MaxResults         int
	LargePoolThreshold int
	PollInterval       time.Duration
	PollTimeout        time.Duration
	// AsyncJobs is set when the backend advertises async skill-match
	// support via its capabilities endpoint.
	AsyncJobs bool
	// Department scopes the candidate pool; empty means the whole
	// organization, which counts as a large address space.
	Department string
}

const (
	defaultMaxResults = 5
	defaultLargePool  = 50
)

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	if o.MaxResults <= 0 {
		o.MaxResults = defaultMaxResults
	}
	if o.LargePoolThreshold <= 0 {
		o.LargePoolThreshold = defaultLargePool
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 15 * time.Second
	}
	return o
}

// Request is one debounced search, tagged with its generation.
type Request struct {
	Generation uint64
	Query      string
	Department string
	ProjectID  string
	WeekKey    string
}

// Outcome is the settled result of one request.
type Outcome struct {
	Generation uint64
	Results    []models.SearchResult
	// Degraded marks that enrichment failed and scores/hours are partial.
	Degraded bool
	Err      error
}

// Reconciler keeps one search box consistent under reordered responses.
type Reconciler struct {
	backend Backend
	logger  Logger
	opts    Options
	timer   *Timer
	now     func() time.Time

	state     State
	query     string
	results   []models.SearchResult
	settled   uint64 // generation of the settled list; its identity
	selection int
	degraded  bool
	lastErr   error
}

// New constructs a reconciler in the idle state.
func New(backend Backend, logger Logger, opts Options) *Reconciler {
	o := opts.withDefaults()
	return &Reconciler{
		backend:   backend,
		logger:    logger,
		opts:      o,
		timer:     NewTimer(o.Debounce),
		now:       time.Now,
		selection: -1,
	}
}

// WithClock overrides the clock, for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	if now != nil {
		r.now = now
	}
	return r
}

// Input records a keystroke. The raw text is visible immediately; the
// expensive search is armed behind the debounce window. The returned
// generation must accompany the timer firing.
func (r *Reconciler) Input(query string) uint64 {
	r.query = query
	r.state = StateDebouncing
	return r.timer.Reset()
}

// Query returns the raw text as typed.
func (r *Reconciler) Query() string { return r.query }

// State returns the lifecycle state.
func (r *Reconciler) State() State { return r.state }

// Debounce returns the quiescence window for scheduling the firing.
func (r *Reconciler) Debounce() time.Duration { return r.timer.Window() }

// TimerFired handles a debounce firing. Superseded firings return false.
// An empty query settles to an empty result list without touching the
// backend.
func (r *Reconciler) TimerFired(gen uint64, projectID string) (Request, bool) {
	if !r.timer.Live(gen) || r.state != StateDebouncing {
		return Request{}, false
	}
	query := strings.TrimSpace(r.query)
	if query == "" {
		r.state = StateIdle
		r.results = nil
		r.settled = gen
		r.selection = -1
		r.degraded = false
		r.lastErr = nil
		return Request{}, false
	}
	r.state = StateInFlight
	return Request{
		Generation: gen,
		Query:      query,
		Department: r.opts.Department,
		ProjectID:  projectID,
		WeekKey:    week.CanonicalKey(r.now()),
	}, true
}

// Apply settles an outcome. Outcomes from superseded generations are
// discarded unconditionally and leave the current results untouched; that
// is the rule that keeps results from regressing under arbitrary network
// reordering. Selection resets whenever the settled list changes identity.
func (r *Reconciler) Apply(out Outcome) bool {
	if !r.timer.Live(out.Generation) {
		return false
	}
	r.state = StateSettled
	r.results = out.Results
	r.settled = out.Generation
	r.selection = -1
	r.degraded = out.Degraded
	r.lastErr = out.Err
	return true
}

// Cancel abandons any debounced or in-flight search and clears the box.
func (r *Reconciler) Cancel() {
	r.timer.Cancel()
	r.state = StateIdle
	r.query = ""
	r.results = nil
	r.selection = -1
	r.degraded = false
	r.lastErr = nil
}

// Results returns the settled result list.
func (r *Reconciler) Results() []models.SearchResult { return r.results }

// Degraded reports that the settled results carry no enrichment data.
func (r *Reconciler) Degraded() bool { return r.degraded }

// Err returns the error of the settled search, if any.
func (r *Reconciler) Err() error { return r.lastErr }

// MoveUp moves keyboard selection up within the settled list.
func (r *Reconciler) MoveUp() {
	if r.state != StateSettled || len(r.results) == 0 {
		return
	}
	if r.selection <= 0 {
		r.selection = 0
		return
	}
	r.selection--
}

// MoveDown moves keyboard selection down within the settled list.
func (r *Reconciler) MoveDown() {
	if r.state != StateSettled || len(r.results) == 0 {
		return
	}
	if r.selection < len(r.results)-1 {
		r.selection++
	}
}

// Selection returns the selected index, or -1.
func (r *Reconciler) Selection() int { return r.selection }

// Selected returns the keyboard-selected result, if any.
func (r *Reconciler) Selected() (models.SearchResult, bool) {
	if r.state != StateSettled || r.selection < 0 || r.selection >= len(r.results) {
		return models.SearchResult{}, false
	}
	return r.results[r.selection], true
}

// Execute runs the blocking part of a search. It reads no mutable
// reconciler state, so it is safe to run off the event loop; the caller
// feeds the outcome back through Apply.
func (r *Reconciler) Execute(ctx context.Context, req Request) Outcome {
	out := Outcome{Generation: req.Generation}

	people, err := r.backend.Directory(ctx, req.Department)
	if err != nil {
		out.Err = fmt.Errorf("search: directory: %w", err)
		return out
	}
	candidates := filterByName(people, req.Query)

	rowByID, availErr := r.availability(ctx, req)
	if availErr != nil {
		out.Degraded = true
		r.logf("search: availability degraded: %v", availErr)
	}

	scores, scoreErr := r.scores(ctx, req, len(candidates))
	if scoreErr != nil {
		out.Degraded = true
		r.logf("search: skill match degraded: %v", scoreErr)
	}

	results := make([]models.SearchResult, 0, len(candidates))
	for _, person := range candidates {
		result := models.SearchResult{Person: person}
		if row, ok := rowByID[person.ID]; ok {
			result.AvailableHours = row.AvailableHours
			result.UtilizationPercent = row.UtilizationPercent
			result.TotalHours = row.TotalHours
		}
		if score, ok := scores[person.ID]; ok && score > 0 {
			result.SkillMatchScore = score
			result.HasSkillMatch = true
		}
		results = append(results, result)
	}
	rank(results)
	if len(results) > r.opts.MaxResults {
		results = results[:r.opts.MaxResults]
	}
	out.Results = results
	return out
}

func (r *Reconciler) availability(ctx context.Context, req Request) (map[string]models.AvailabilityRow, error) {
	rows, err := r.backend.GetAvailability(ctx, req.ProjectID, req.WeekKey, api.AvailabilityOptions{
		CandidatesOnly:  true,
		Department:      req.Department,
		IncludeChildren: true,
	})
	if err != nil {
		return map[string]models.AvailabilityRow{}, err
	}
	byID := make(map[string]models.AvailabilityRow, len(rows))
	for _, row := range rows {
		byID[row.PersonID] = row
	}
	return byID, nil
}

// scores fetches skill-match scores for the query's skill terms. Large
// address spaces (no department scope, or a candidate pool above the
// threshold) go through the async job endpoint when the backend supports
// it; everything else calls the synchronous endpoint. Failures degrade to
// no scores, they never fail the search.
func (r *Reconciler) scores(ctx context.Context, req Request, poolSize int) (map[string]float64, error) {
	terms := SkillTerms(req.Query)
	if len(terms) == 0 {
		return map[string]float64{}, nil
	}
	opts := api.SkillMatchOptions{Department: req.Department, Limit: r.opts.MaxResults * 4}
	large := req.Department == "" || poolSize > r.opts.LargePoolThreshold

	var raw []api.SkillScore
	var err error
	if large && r.opts.AsyncJobs {
		var jobID string
		jobID, err = r.backend.SkillMatchAsync(ctx, terms, opts)
		if err == nil {
			raw, err = r.backend.PollJob(ctx, jobID, r.opts.PollInterval, r.opts.PollTimeout)
		}
	} else {
		raw, err = r.backend.SkillMatch(ctx, terms, opts)
	}
	if err != nil {
		return map[string]float64{}, err
	}
	byID := make(map[string]float64, len(raw))
	for _, score := range raw {
		byID[score.PersonID] = score.Score
	}
	return byID, nil
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// filterByName keeps the people whose names fuzzily match the query. When no
// name matches, the query is treated as skill terms only and the whole pool
// stays in play for score-based ranking.
func filterByName(people []models.Person, query string) []models.Person {
	if strings.TrimSpace(query) == "" {
		return people
	}
	matches := fuzzy.FindFrom(query, personSource(people))
	if len(matches) == 0 {
		return people
	}
	out := make([]models.Person, 0, len(matches))
	for _, match := range matches {
		out = append(out, people[match.Index])
	}
	return out
}

type personSource []models.Person

func (s personSource) String(i int) string { return s[i].Name }
func (s personSource) Len() int            { return len(s) }

// rank orders results by skill-match score (desc), then available hours
// (desc), then name (asc). Stable, so equal entries keep pool order.
func rank(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.SkillMatchScore != b.SkillMatchScore {
			return a.SkillMatchScore > b.SkillMatchScore
		}
		if a.AvailableHours != b.AvailableHours {
			return a.AvailableHours > b.AvailableHours
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

var skillStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "who": {}, "need": {},
	"someone": {}, "person": {}, "available": {}, "hours": {},
}

// SkillTerms extracts candidate skill keywords from free query text:
// lowercase word tokens of three or more characters, minus stopwords.
func SkillTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '+' || r == '#')
	})
	seen := map[string]struct{}{}
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 3 {
			continue
		}
		if _, stop := skillStopwords[field]; stop {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		terms = append(terms, field)
	}
	return terms
}
