package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallgrass/crewdeck/internal/models"
	"github.com/tallgrass/crewdeck/internal/store"
)

type fakeStatusBackend struct {
	calls int
	errs  []error // one per call, nil-padded
}

func (f *fakeStatusBackend) UpdateProjectStatus(_ context.Context, projectID string, status models.ProjectStatus) (models.Project, error) {
	f.calls++
	if len(f.errs) >= f.calls {
		if err := f.errs[f.calls-1]; err != nil {
			return models.Project{}, err
		}
	}
	return models.Project{ID: projectID, Status: status}, nil
}

func seededStore() *store.Store {
	st := store.New(func(context.Context) (map[string]models.FilterMetadataEntry, error) {
		return map[string]models.FilterMetadataEntry{}, nil
	}, nil)
	project := models.Project{ID: "proj-1", Name: "Pier", Status: models.StatusActive}
	st.SetPage("page=0", []models.Project{project})
	st.SetPage("page=1", []models.Project{project})
	st.Select(project)
	return st
}

func everyStatus(t *testing.T, st *store.Store, projectID string) []models.ProjectStatus {
	t.Helper()
	var out []models.ProjectStatus
	for _, key := range []string{"page=0", "page=1"} {
		page, ok := st.Page(key)
		require.True(t, ok)
		for _, project := range page {
			if project.ID == projectID {
				out = append(out, project.Status)
			}
		}
	}
	if detail, ok := st.Detail(projectID); ok {
		out = append(out, detail.Status)
	}
	if selected, ok := st.Selected(); ok && selected.ID == projectID {
		out = append(out, selected.Status)
	}
	return out
}

func assertAllStatus(t *testing.T, st *store.Store, projectID string, want models.ProjectStatus) {
	t.Helper()
	for i, got := range everyStatus(t, st, projectID) {
		assert.Equal(t, want, got, "cache copy %d disagrees", i)
	}
}

func TestBeginAppliesOptimisticallyEverywhere(t *testing.T) {
	st := seededStore()
	s := New(&fakeStatusBackend{}, st, nil, nil)

	cmd := s.Begin("proj-1", models.StatusOnHold)
	assert.Equal(t, "proj-1", cmd.ProjectID())
	assert.Equal(t, models.StatusOnHold, cmd.Next())
	assertAllStatus(t, st, "proj-1", models.StatusOnHold)
}

func TestSuccessfulPushKeepsOptimisticState(t *testing.T) {
	st := seededStore()
	backend := &fakeStatusBackend{}
	s := New(backend, st, nil, nil)
	sub := st.Bus().Subscribe(store.TopicProjectsChanged)
	defer sub.Close()

	cmd := s.Begin("proj-1", models.StatusClosed)
	require.NoError(t, s.Push(context.Background(), cmd))
	require.NoError(t, s.Resolve(cmd, nil))

	assertAllStatus(t, st, "proj-1", models.StatusClosed)
	select {
	case event := <-sub.Events:
		assert.Equal(t, "proj-1", event.ProjectID)
	case <-time.After(time.Second):
		t.Fatal("no change event after a settled status write")
	}
}

func TestFailedPushRollsBackEveryCopy(t *testing.T) {
	st := seededStore()
	backend := &fakeStatusBackend{errs: []error{errors.New("backend down")}}
	s := New(backend, st, nil, nil)

	cmd := s.Begin("proj-1", models.StatusArchived)
	assertAllStatus(t, st, "proj-1", models.StatusArchived)

	pushErr := s.Push(context.Background(), cmd)
	require.Error(t, pushErr)

	err := s.Resolve(cmd, pushErr)
	require.Error(t, err, "a rollback must surface a user-visible error")
	assertAllStatus(t, st, "proj-1", models.StatusActive)
}

func TestNewestIssuanceWinsTheRace(t *testing.T) {
	// active -> on_hold (cmd1) -> active (cmd2); cmd2 settles first, then
	// cmd1's failure arrives. The stale rollback must be dropped: every
	// cache stays on cmd2's value.
	st := seededStore()
	backend := &fakeStatusBackend{errs: []error{errors.New("slow failure"), nil}}
	s := New(backend, st, nil, nil)

	cmd1 := s.Begin("proj-1", models.StatusOnHold)
	cmd2 := s.Begin("proj-1", models.StatusActive)

	err1 := s.Push(context.Background(), cmd1)
	require.Error(t, err1)
	require.NoError(t, s.Push(context.Background(), cmd2))

	require.NoError(t, s.Resolve(cmd2, nil))
	assert.NoError(t, s.Resolve(cmd1, err1), "superseded rollback is dropped silently")

	assertAllStatus(t, st, "proj-1", models.StatusActive)
}

func TestOwnedFailureStillRollsBackAfterUnrelatedClaims(t *testing.T) {
	st := seededStore()
	st.SetPage("page=0", []models.Project{
		{ID: "proj-1", Status: models.StatusActive},
		{ID: "proj-2", Status: models.StatusActive},
	})
	backend := &fakeStatusBackend{errs: []error{errors.New("down"), nil}}
	s := New(backend, st, nil, nil)

	cmd1 := s.Begin("proj-1", models.StatusOnHold)
	cmd2 := s.Begin("proj-2", models.StatusClosed)

	err1 := s.Push(context.Background(), cmd1)
	require.Error(t, err1)
	require.NoError(t, s.Push(context.Background(), cmd2))
	require.NoError(t, s.Resolve(cmd2, nil))

	// proj-2's claim must not shadow proj-1's ownership.
	require.Error(t, s.Resolve(cmd1, err1))
	assertAllStatus(t, st, "proj-1", models.StatusActive)
	assertAllStatus(t, st, "proj-2", models.StatusClosed)
}
