// internal/assign/coordinator.go
//
// Create/update/delete of assignments for the selected project. Two ordering
// rules live here and nowhere else: the advisory conflict check runs before
// any write that increases the current week's hours, and after a successful
// write the filter metadata cache is invalidated before the assignment list
// reloads, so the reloaded list can never render against metadata older
// than the mutation.

package assign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tallgrass/crewdeck/internal/api"
	"github.com/tallgrass/crewdeck/internal/models"
	"github.com/tallgrass/crewdeck/internal/store"
	"github.com/tallgrass/crewdeck/internal/week"
)

// ErrConfirmationRequired is returned by Delete until the caller has taken
// the user through an explicit confirmation step.
var ErrConfirmationRequired = errors.New("assign: delete requires confirmation")

// Logger matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Journal records user-visible staffing activity.
type Journal interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// Backend is the slice of the staffing API the coordinator needs.
type Backend interface {
	ListAssignments(ctx context.Context, projectID string) ([]models.Assignment, error)
	CreateAssignment(ctx context.Context, req api.CreateAssignmentRequest) (models.Assignment, error)
	UpdateAssignment(ctx context.Context, assignmentID string, patch api.AssignmentPatch) (models.Assignment, error)
	DeleteAssignment(ctx context.Context, assignmentID string) error
	CheckConflicts(ctx context.Context, personID, projectID, weekKey string, deltaHours float64) ([]string, error)
}

// Coordinator owns the assignment list of the currently selected project.
// Mutations run off the UI event loop one at a time; the mutex keeps
// concurrent renders consistent with the mutation in progress.
type Coordinator struct {
	backend Backend
	store   *store.Store
	logger  Logger
	journal Journal
	now     func() time.Time

	mu          sync.Mutex
	projectID   string
	assignments []models.Assignment
	warnings    []string
	lastErr     error
}

// New constructs a coordinator bound to the session store.
func New(backend Backend, st *store.Store, logger Logger, journal Journal) *Coordinator {
	return &Coordinator{
		backend: backend,
		store:   st,
		logger:  logger,
		journal: journal,
		now:     time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	if now != nil {
		c.now = now
	}
	return c
}

// Load switches the coordinator to a project and fetches its assignments.
func (c *Coordinator) Load(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectID = projectID
	c.warnings = nil
	c.lastErr = nil
	return c.reload(ctx)
}

// Assignments returns the cached list for the loaded project.
func (c *Coordinator) Assignments() []models.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Assignment, len(c.assignments))
	copy(out, c.assignments)
	return out
}

// ProjectID returns the loaded project.
func (c *Coordinator) ProjectID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectID
}

// Warnings returns the advisory conflict warnings of the last write.
func (c *Coordinator) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

// Err returns the user-visible error of the last failed mutation. A failed
// mutation preserves the in-progress edit; the caller keeps its form state
// and may retry.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearErr drops the error banner.
func (c *Coordinator) ClearErr() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
}

// Create adds an assignment. When the current week's hours are increasing
// (from zero), the conflict-check collaborator runs first and its warnings
// surface; they are advisory and never block the write.
func (c *Coordinator) Create(ctx context.Context, personID, role string, weeklyHours map[string]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := validateWeekKeys(weeklyHours); err != nil {
		c.lastErr = err
		return err
	}
	weekKey := week.CanonicalKey(c.now())
	delta := weeklyHours[weekKey]
	warnings := c.adviseConflicts(ctx, personID, weekKey, delta)

	_, err := c.backend.CreateAssignment(ctx, api.CreateAssignmentRequest{
		ProjectID:   c.projectID,
		PersonID:    personID,
		Role:        role,
		WeeklyHours: cloneHours(weeklyHours),
	})
	if err != nil {
		c.lastErr = fmt.Errorf("assign: create failed: %w", err)
		return c.lastErr
	}
	c.warnings = warnings
	c.journalf("Assignment created on project %s", c.projectID)
	return c.afterWrite(ctx)
}

// UpdateHours replaces an assignment's weekly-hours map. Increases to the
// current week's hours trigger the conflict check with the delta; decreases
// skip the check and clear standing warnings, since a decreasing edit
// cannot create new overallocation.
func (c *Coordinator) UpdateHours(ctx context.Context, assignmentID string, hours map[string]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := validateWeekKeys(hours); err != nil {
		c.lastErr = err
		return err
	}
	current, ok := c.find(assignmentID)
	if !ok {
		c.lastErr = fmt.Errorf("assign: unknown assignment %s", assignmentID)
		return c.lastErr
	}
	weekKey := week.CanonicalKey(c.now())
	delta := hours[weekKey] - current.Hours(weekKey)

	var warnings []string
	if delta > 0 {
		warnings = c.adviseConflicts(ctx, current.PersonID, weekKey, delta)
	}

	patch := api.AssignmentPatch{WeeklyHours: cloneHours(hours)}
	if _, err := c.backend.UpdateAssignment(ctx, assignmentID, patch); err != nil {
		c.lastErr = fmt.Errorf("assign: update failed: %w", err)
		return c.lastErr
	}
	// Advisory state follows the edit direction: increases surface fresh
	// warnings, decreases clear them.
	c.warnings = warnings
	c.journalf("Assignment %s hours updated", assignmentID)
	return c.afterWrite(ctx)
}

// UpdateRole changes the role label or fills a placeholder with a person.
func (c *Coordinator) UpdateRole(ctx context.Context, assignmentID string, personID, role *string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	patch := api.AssignmentPatch{PersonID: personID, Role: role}
	if _, err := c.backend.UpdateAssignment(ctx, assignmentID, patch); err != nil {
		c.lastErr = fmt.Errorf("assign: update failed: %w", err)
		return c.lastErr
	}
	c.journalf("Assignment %s role updated", assignmentID)
	return c.afterWrite(ctx)
}

// Delete removes an assignment. The caller must pass confirmed=true after
// an explicit user confirmation step.
func (c *Coordinator) Delete(ctx context.Context, assignmentID string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.DeleteAssignment(ctx, assignmentID); err != nil {
		c.lastErr = fmt.Errorf("assign: delete failed: %w", err)
		return c.lastErr
	}
	c.warnings = nil
	c.journalf("Assignment %s deleted", assignmentID)
	return c.afterWrite(ctx)
}

// adviseConflicts runs the advisory conflict check when hours increase for a
// real person. Check failures are swallowed: "no warnings available" must
// never block the underlying write.
func (c *Coordinator) adviseConflicts(ctx context.Context, personID, weekKey string, deltaHours float64) []string {
	if deltaHours <= 0 || personID == "" {
		return nil
	}
	warnings, err := c.backend.CheckConflicts(ctx, personID, c.projectID, weekKey, deltaHours)
	if err != nil {
		c.logf("assign: conflict check unavailable: %v", err)
		return nil
	}
	if len(warnings) > 0 && c.journal != nil {
		c.journal.Warn("Overallocation advisory for %s: %d warning(s)", personID, len(warnings))
	}
	return warnings
}

// afterWrite runs the fixed post-mutation sequence: invalidate filter
// metadata, reload the assignment list, then announce the change. A
// metadata failure is sticky inside the cache and disables the dependent
// filters, but it does not undo an already settled write.
func (c *Coordinator) afterWrite(ctx context.Context) error {
	c.lastErr = nil
	if err := c.store.Metadata().Invalidate(ctx); err != nil {
		c.logf("assign: metadata invalidate: %v", err)
	}
	if err := c.reload(ctx); err != nil {
		return err
	}
	c.store.Bus().Publish(store.TopicAssignmentsChanged, c.projectID)
	return nil
}

func (c *Coordinator) reload(ctx context.Context) error {
	assignments, err := c.backend.ListAssignments(ctx, c.projectID)
	if err != nil {
		c.lastErr = fmt.Errorf("assign: reload failed: %w", err)
		return c.lastErr
	}
	c.assignments = assignments
	return nil
}

func (c *Coordinator) find(assignmentID string) (models.Assignment, bool) {
	for _, assignment := range c.assignments {
		if assignment.ID == assignmentID {
			return assignment, true
		}
	}
	return models.Assignment{}, false
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func (c *Coordinator) journalf(format string, args ...any) {
	if c.journal != nil {
		c.journal.Info(format, args...)
	}
}

// validateWeekKeys rejects hour maps keyed by anything the week anchor could
// not have produced, and negative hour counts.
func validateWeekKeys(hours map[string]float64) error {
	for key, value := range hours {
		if !week.IsCanonical(key) {
			return fmt.Errorf("assign: %q is not a canonical week key", key)
		}
		if value < 0 {
			return fmt.Errorf("assign: negative hours for week %s", key)
		}
	}
	return nil
}

func cloneHours(hours map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(hours))
	for k, v := range hours {
		out[k] = v
	}
	return out
}
