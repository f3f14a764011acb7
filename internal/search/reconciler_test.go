package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallgrass/crewdeck/internal/api"
	"github.com/tallgrass/crewdeck/internal/models"
)

type fakeBackend struct {
	people []models.Person
	rows   []models.AvailabilityRow
	scores []api.SkillScore

	directoryErr    error
	availabilityErr error
	skillErr        error

	syncCalls  int
	asyncCalls int
	pollCalls  int
}

func (b *fakeBackend) Directory(context.Context, string) ([]models.Person, error) {
	if b.directoryErr != nil {
		return nil, b.directoryErr
	}
	return b.people, nil
}

func (b *fakeBackend) GetAvailability(context.Context, string, string, api.AvailabilityOptions) ([]models.AvailabilityRow, error) {
	if b.availabilityErr != nil {
		return nil, b.availabilityErr
	}
	return b.rows, nil
}

func (b *fakeBackend) SkillMatch(context.Context, []string, api.SkillMatchOptions) ([]api.SkillScore, error) {
	b.syncCalls++
	if b.skillErr != nil {
		return nil, b.skillErr
	}
	return b.scores, nil
}

func (b *fakeBackend) SkillMatchAsync(context.Context, []string, api.SkillMatchOptions) (string, error) {
	b.asyncCalls++
	if b.skillErr != nil {
		return "", b.skillErr
	}
	return "job-1", nil
}

func (b *fakeBackend) PollJob(context.Context, string, time.Duration, time.Duration) ([]api.SkillScore, error) {
	b.pollCalls++
	return b.scores, nil
}

func people(names ...string) []models.Person {
	out := make([]models.Person, len(names))
	for i, name := range names {
		out[i] = models.Person{ID: "per-" + name, Name: name}
	}
	return out
}

func fireAndExecute(t *testing.T, r *Reconciler, gen uint64) Outcome {
	t.Helper()
	req, ok := r.TimerFired(gen, "proj-1")
	require.True(t, ok, "firing for generation %d should be live", gen)
	return r.Execute(context.Background(), req)
}

func TestStaleOutcomeNeverReplacesNewerResults(t *testing.T) {
	backend := &fakeBackend{people: people("Alice", "Albert", "Bob")}
	r := New(backend, nil, Options{Department: "eng"})

	gen1 := r.Input("al")
	out1 := fireAndExecute(t, r, gen1)

	gen2 := r.Input("alice")
	out2 := fireAndExecute(t, r, gen2)

	// The newer outcome settles first; the slow older response arrives after
	// and must be discarded without touching the results.
	require.True(t, r.Apply(out2))
	require.False(t, r.Apply(out1))

	require.Len(t, r.Results(), 1)
	assert.Equal(t, "Alice", r.Results()[0].Name)
	assert.Equal(t, StateSettled, r.State())
}

func TestSupersededFiringDoesNotExecute(t *testing.T) {
	backend := &fakeBackend{people: people("Alice")}
	r := New(backend, nil, Options{Department: "eng"})

	gen1 := r.Input("a")
	gen2 := r.Input("al")

	_, ok := r.TimerFired(gen1, "proj-1")
	assert.False(t, ok, "superseded firing must be dead")
	_, ok = r.TimerFired(gen2, "proj-1")
	assert.True(t, ok)
}

func TestEmptyQuerySettlesWithoutBackend(t *testing.T) {
	backend := &fakeBackend{people: people("Alice")}
	r := New(backend, nil, Options{Department: "eng"})

	gen := r.Input("   ")
	_, ok := r.TimerFired(gen, "proj-1")
	assert.False(t, ok)
	assert.Equal(t, StateIdle, r.State())
	assert.Empty(t, r.Results())
}

func TestRankingScoreThenHoursThenName(t *testing.T) {
	backend := &fakeBackend{
		// No name contains the query; the whole pool stays in play.
		people: people("Bob", "Ann", "Carl"),
		rows: []models.AvailabilityRow{
			{PersonID: "per-Bob", AvailableHours: 10},
			{PersonID: "per-Ann", AvailableHours: 20},
			{PersonID: "per-Carl", AvailableHours: 20},
		},
		scores: []api.SkillScore{
			{PersonID: "per-Bob", Score: 0.9},
			{PersonID: "per-Ann", Score: 0.9},
			{PersonID: "per-Carl", Score: 0.5},
		},
	}
	r := New(backend, nil, Options{Department: "eng"})

	gen := r.Input("sketchup")
	out := fireAndExecute(t, r, gen)
	require.True(t, r.Apply(out))

	got := make([]string, 0, len(r.Results()))
	for _, result := range r.Results() {
		got = append(got, result.Name)
	}
	// Equal scores: Ann beats Bob on hours; Carl trails on score.
	assert.Equal(t, []string{"Ann", "Bob", "Carl"}, got)
	assert.False(t, r.Degraded())
}

func TestResultsTruncatedToMaxResults(t *testing.T) {
	backend := &fakeBackend{people: people("A1", "A2", "A3", "A4")}
	r := New(backend, nil, Options{Department: "eng", MaxResults: 2})

	gen := r.Input("worker")
	out := fireAndExecute(t, r, gen)
	require.True(t, r.Apply(out))
	assert.Len(t, r.Results(), 2)
}

func TestEnrichmentFailureDegradesInsteadOfFailing(t *testing.T) {
	backend := &fakeBackend{
		people:          people("Alice"),
		availabilityErr: errors.New("availability down"),
	}
	r := New(backend, nil, Options{Department: "eng"})

	gen := r.Input("alice")
	out := fireAndExecute(t, r, gen)
	require.True(t, r.Apply(out))

	assert.True(t, r.Degraded())
	assert.NoError(t, r.Err())
	require.Len(t, r.Results(), 1)
	assert.Zero(t, r.Results()[0].AvailableHours)
}

func TestDirectoryFailureIsTheSearchError(t *testing.T) {
	backend := &fakeBackend{directoryErr: errors.New("directory down")}
	r := New(backend, nil, Options{Department: "eng"})

	gen := r.Input("alice")
	out := fireAndExecute(t, r, gen)
	require.True(t, r.Apply(out))
	assert.Error(t, r.Err())
	assert.Empty(t, r.Results())
}

func TestLargeAddressSpaceUsesAsyncJobs(t *testing.T) {
	backend := &fakeBackend{people: people("Alice")}
	// Department empty counts as a large address space.
	r := New(backend, nil, Options{AsyncJobs: true})

	gen := r.Input("revit modeling")
	fireAndExecute(t, r, gen)

	assert.Equal(t, 1, backend.asyncCalls)
	assert.Equal(t, 1, backend.pollCalls)
	assert.Zero(t, backend.syncCalls)
}

func TestScopedSmallPoolUsesSyncSkillMatch(t *testing.T) {
	backend := &fakeBackend{people: people("Alice")}
	r := New(backend, nil, Options{AsyncJobs: true, Department: "eng", LargePoolThreshold: 50})

	gen := r.Input("revit modeling")
	fireAndExecute(t, r, gen)

	assert.Equal(t, 1, backend.syncCalls)
	assert.Zero(t, backend.asyncCalls)
}

func TestSelectionFollowsSettledListOnly(t *testing.T) {
	backend := &fakeBackend{people: people("Alice", "Albert")}
	r := New(backend, nil, Options{Department: "eng"})

	// No selection while nothing has settled.
	r.MoveDown()
	_, ok := r.Selected()
	assert.False(t, ok)

	gen := r.Input("al")
	out := fireAndExecute(t, r, gen)
	require.True(t, r.Apply(out))
	assert.Equal(t, -1, r.Selection(), "selection resets on settle")

	r.MoveDown()
	selected, ok := r.Selected()
	require.True(t, ok)
	first := selected.Name

	r.MoveDown()
	r.MoveDown() // clamped at the end
	assert.Equal(t, 1, r.Selection())

	r.MoveUp()
	selected, _ = r.Selected()
	assert.Equal(t, first, selected.Name)

	// A new settle resets the selection again.
	gen = r.Input("albert")
	out = fireAndExecute(t, r, gen)
	require.True(t, r.Apply(out))
	assert.Equal(t, -1, r.Selection())
}

func TestCancelClearsEverything(t *testing.T) {
	backend := &fakeBackend{people: people("Alice")}
	r := New(backend, nil, Options{Department: "eng"})

	gen := r.Input("alice")
	out := fireAndExecute(t, r, gen)
	require.True(t, r.Apply(out))

	r.Cancel()
	assert.Equal(t, StateIdle, r.State())
	assert.Empty(t, r.Results())
	assert.Empty(t, r.Query())
	// Outcomes for pre-cancel generations are dead.
	assert.False(t, r.Apply(out))
}

func TestSkillTerms(t *testing.T) {
	terms := SkillTerms("Need someone with Revit and C++ for 20 hours")
	assert.Equal(t, []string{"revit", "c++"}, terms)

	assert.Empty(t, SkillTerms("a an to"))
	assert.Equal(t, []string{"revit"}, SkillTerms("revit revit REVIT"))
}
