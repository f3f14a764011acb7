package assign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallgrass/crewdeck/internal/api"
	"github.com/tallgrass/crewdeck/internal/models"
	"github.com/tallgrass/crewdeck/internal/store"
)

// Wednesday 2025-01-15; the canonical week key is 2025-01-13.
var testNow = func() time.Time {
	return time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)
}

const testWeekKey = "2025-01-13"

type fakeStaffing struct {
	calls []string

	assignments []models.Assignment
	warnings    []string

	checkedPerson string
	checkedWeek   string
	checkedDelta  float64

	createErr error
	updateErr error
	deleteErr error
	checkErr  error
	listErr   error
}

func (f *fakeStaffing) ListAssignments(context.Context, string) ([]models.Assignment, error) {
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.assignments, nil
}

func (f *fakeStaffing) CreateAssignment(_ context.Context, req api.CreateAssignmentRequest) (models.Assignment, error) {
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return models.Assignment{}, f.createErr
	}
	created := models.Assignment{
		ID:          "a-new",
		ProjectID:   req.ProjectID,
		PersonID:    req.PersonID,
		Role:        req.Role,
		WeeklyHours: req.WeeklyHours,
	}
	f.assignments = append(f.assignments, created)
	return created, nil
}

func (f *fakeStaffing) UpdateAssignment(_ context.Context, assignmentID string, patch api.AssignmentPatch) (models.Assignment, error) {
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return models.Assignment{}, f.updateErr
	}
	for i := range f.assignments {
		if f.assignments[i].ID == assignmentID {
			if patch.WeeklyHours != nil {
				f.assignments[i].WeeklyHours = patch.WeeklyHours
			}
			if patch.PersonID != nil {
				f.assignments[i].PersonID = *patch.PersonID
			}
			if patch.Role != nil {
				f.assignments[i].Role = *patch.Role
			}
			return f.assignments[i], nil
		}
	}
	return models.Assignment{}, errors.New("not found")
}

func (f *fakeStaffing) DeleteAssignment(_ context.Context, assignmentID string) error {
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.assignments[:0]
	for _, a := range f.assignments {
		if a.ID != assignmentID {
			kept = append(kept, a)
		}
	}
	f.assignments = kept
	return nil
}

func (f *fakeStaffing) CheckConflicts(_ context.Context, personID, _, weekKey string, deltaHours float64) ([]string, error) {
	f.calls = append(f.calls, "check")
	f.checkedPerson = personID
	f.checkedWeek = weekKey
	f.checkedDelta = deltaHours
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return f.warnings, nil
}

func (f *fakeStaffing) metadataLoader(context.Context) (map[string]models.FilterMetadataEntry, error) {
	f.calls = append(f.calls, "metadata")
	counts := map[string]models.FilterMetadataEntry{}
	for _, a := range f.assignments {
		entry := counts[a.ProjectID]
		entry.AssignmentCount++
		counts[a.ProjectID] = entry
	}
	return counts, nil
}

func newTestCoordinator(t *testing.T, backend *fakeStaffing) (*Coordinator, *store.Store) {
	t.Helper()
	st := store.New(backend.metadataLoader, nil)
	c := New(backend, st, nil, nil).WithClock(testNow)
	require.NoError(t, c.Load(context.Background(), "proj-1"))
	backend.calls = nil
	return c, st
}

func TestIncreaseRunsConflictCheckAndSurfacesWarnings(t *testing.T) {
	backend := &fakeStaffing{
		assignments: []models.Assignment{{
			ID:          "a1",
			ProjectID:   "proj-1",
			PersonID:    "per-alice",
			WeeklyHours: map[string]float64{"2025-01-06": 20},
		}},
		warnings: []string{"Alice is at 95% capacity for the week of 2025-01-13"},
	}
	c, _ := newTestCoordinator(t, backend)

	err := c.UpdateHours(context.Background(), "a1", map[string]float64{
		"2025-01-06": 20,
		testWeekKey:  10,
	})
	require.NoError(t, err)

	// The check saw the delta for the current week, not the total.
	assert.Equal(t, "per-alice", backend.checkedPerson)
	assert.Equal(t, testWeekKey, backend.checkedWeek)
	assert.Equal(t, 10.0, backend.checkedDelta)

	// Advisory only: the write went through and the warning is visible.
	require.Len(t, c.Warnings(), 1)
	assert.Contains(t, c.Warnings()[0], "95% capacity")
	assert.Equal(t, 10.0, c.Assignments()[0].Hours(testWeekKey))
}

func TestDecreaseSkipsCheckAndClearsWarnings(t *testing.T) {
	backend := &fakeStaffing{
		assignments: []models.Assignment{{
			ID:          "a1",
			ProjectID:   "proj-1",
			PersonID:    "per-alice",
			WeeklyHours: map[string]float64{testWeekKey: 20},
		}},
		warnings: []string{"overallocated"},
	}
	c, _ := newTestCoordinator(t, backend)

	require.NoError(t, c.UpdateHours(context.Background(), "a1", map[string]float64{testWeekKey: 30}))
	require.NotEmpty(t, c.Warnings())
	checksSoFar := countCalls(backend.calls, "check")

	require.NoError(t, c.UpdateHours(context.Background(), "a1", map[string]float64{testWeekKey: 5}))
	assert.Empty(t, c.Warnings(), "a decreasing edit clears standing warnings")
	assert.Equal(t, checksSoFar, countCalls(backend.calls, "check"), "no check on decrease")
}

func TestWriteInvalidatesMetadataBeforeReload(t *testing.T) {
	backend := &fakeStaffing{
		assignments: []models.Assignment{{
			ID:          "a1",
			ProjectID:   "proj-1",
			PersonID:    "per-alice",
			WeeklyHours: map[string]float64{testWeekKey: 5},
		}},
	}
	c, st := newTestCoordinator(t, backend)

	require.NoError(t, c.UpdateHours(context.Background(), "a1", map[string]float64{testWeekKey: 2}))

	metaIdx := indexOf(backend.calls, "metadata")
	listIdx := indexOf(backend.calls, "list")
	require.GreaterOrEqual(t, metaIdx, 0)
	require.GreaterOrEqual(t, listIdx, 0)
	assert.Less(t, metaIdx, listIdx, "metadata must refresh before the list reloads")
	assert.True(t, st.Metadata().HasAssignments("proj-1"))
}

func TestWritePublishesChangeEvent(t *testing.T) {
	backend := &fakeStaffing{}
	c, st := newTestCoordinator(t, backend)
	sub := st.Bus().Subscribe(store.TopicAssignmentsChanged)
	defer sub.Close()

	require.NoError(t, c.Create(context.Background(), "per-alice", "", map[string]float64{testWeekKey: 0}))

	select {
	case event := <-sub.Events:
		assert.Equal(t, "proj-1", event.ProjectID)
	case <-time.After(time.Second):
		t.Fatal("no change event after a settled write")
	}
}

func TestFailedMutationPreservesState(t *testing.T) {
	backend := &fakeStaffing{
		assignments: []models.Assignment{{
			ID:          "a1",
			ProjectID:   "proj-1",
			PersonID:    "per-alice",
			WeeklyHours: map[string]float64{testWeekKey: 5},
		}},
		updateErr: errors.New("backend down"),
	}
	c, _ := newTestCoordinator(t, backend)

	err := c.UpdateHours(context.Background(), "a1", map[string]float64{testWeekKey: 9})
	require.Error(t, err)
	assert.Error(t, c.Err())

	// The cached list is untouched and no post-write work ran.
	assert.Equal(t, 5.0, c.Assignments()[0].Hours(testWeekKey))
	assert.Zero(t, countCalls(backend.calls, "metadata"))
	assert.Zero(t, countCalls(backend.calls, "list"))

	c.ClearErr()
	assert.NoError(t, c.Err())
}

func TestConflictCheckFailureNeverBlocksTheWrite(t *testing.T) {
	backend := &fakeStaffing{
		assignments: []models.Assignment{{
			ID:          "a1",
			ProjectID:   "proj-1",
			PersonID:    "per-alice",
			WeeklyHours: map[string]float64{},
		}},
		checkErr: errors.New("advisor down"),
	}
	c, _ := newTestCoordinator(t, backend)

	require.NoError(t, c.UpdateHours(context.Background(), "a1", map[string]float64{testWeekKey: 8}))
	assert.Empty(t, c.Warnings())
	assert.Equal(t, 8.0, c.Assignments()[0].Hours(testWeekKey))
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	backend := &fakeStaffing{
		assignments: []models.Assignment{{ID: "a1", ProjectID: "proj-1"}},
	}
	c, _ := newTestCoordinator(t, backend)

	err := c.Delete(context.Background(), "a1", false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Zero(t, countCalls(backend.calls, "delete"))

	require.NoError(t, c.Delete(context.Background(), "a1", true))
	assert.Empty(t, c.Assignments())
}

func TestNonCanonicalWeekKeysRejected(t *testing.T) {
	backend := &fakeStaffing{}
	c, _ := newTestCoordinator(t, backend)

	// 2025-01-14 is a Tuesday.
	err := c.Create(context.Background(), "per-alice", "", map[string]float64{"2025-01-14": 4})
	require.Error(t, err)
	assert.Zero(t, countCalls(backend.calls, "create"))

	err = c.Create(context.Background(), "per-alice", "", map[string]float64{testWeekKey: -1})
	require.Error(t, err)
}

func TestCreatePlaceholderSkipsConflictCheck(t *testing.T) {
	backend := &fakeStaffing{}
	c, _ := newTestCoordinator(t, backend)

	require.NoError(t, c.Create(context.Background(), "", "Senior Engineer", map[string]float64{testWeekKey: 40}))
	assert.Zero(t, countCalls(backend.calls, "check"), "placeholders have no person to overallocate")
	require.Len(t, c.Assignments(), 1)
	assert.True(t, c.Assignments()[0].IsPlaceholder())
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, call := range calls {
		if call == name {
			n++
		}
	}
	return n
}

func indexOf(calls []string, name string) int {
	for i, call := range calls {
		if call == name {
			return i
		}
	}
	return -1
}
