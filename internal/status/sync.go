// internal/status/sync.go
//
// Optimistic project-status updates. Each change is a command object that
// snapshots every cache copy, applies the new status to all of them in one
// tick, and knows how to restore every snapshot together if the network
// write fails. Commands claim ownership of the project's cached status by
// sequence number: a command superseded by a newer one neither commits nor
// rolls back, so when two changes race the newest issuance wins no matter
// which response arrives first.

package status

import (
	"context"
	"fmt"

	"github.com/tallgrass/crewdeck/internal/models"
	"github.com/tallgrass/crewdeck/internal/store"
)

// Logger matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Journal records user-visible staffing activity.
type Journal interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

// Backend is the slice of the staffing API the sync needs.
type Backend interface {
	UpdateProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus) (models.Project, error)
}

// Command is one optimistic status change in flight.
type Command struct {
	seq       uint64
	projectID string
	next      models.ProjectStatus
	snapshot  store.StatusSnapshot
}

// ProjectID returns the target project.
func (c *Command) ProjectID() string { return c.projectID }

// Next returns the optimistic status.
func (c *Command) Next() models.ProjectStatus { return c.next }

// Sync coordinates optimistic status changes against the session store.
type Sync struct {
	backend Backend
	store   *store.Store
	logger  Logger
	journal Journal
}

// New constructs a status sync bound to the session store.
func New(backend Backend, st *store.Store, logger Logger, journal Journal) *Sync {
	return &Sync{backend: backend, store: st, logger: logger, journal: journal}
}

// Begin snapshots every cache copy of the project and applies the new
// status to all of them synchronously, so no intermediate render can show
// disagreeing statuses across views. Call from the event loop; the returned
// command is then pushed off-loop and resolved back on it.
func (s *Sync) Begin(projectID string, next models.ProjectStatus) *Command {
	cmd := &Command{
		projectID: projectID,
		next:      next,
		snapshot:  s.store.SnapshotStatus(projectID),
	}
	cmd.seq = s.store.ClaimStatus(projectID)
	s.store.ApplyStatus(projectID, next)
	return cmd
}

// Push issues the network update for a begun command. Safe to run off the
// event loop; it touches no caches. On success it also refreshes the filter
// metadata, since status participates in list filters.
func (s *Sync) Push(ctx context.Context, cmd *Command) error {
	if _, err := s.backend.UpdateProjectStatus(ctx, cmd.projectID, cmd.next); err != nil {
		return fmt.Errorf("status: update %s: %w", cmd.projectID, err)
	}
	if err := s.store.Metadata().Invalidate(ctx); err != nil {
		// Sticky inside the cache; the status write itself settled.
		s.logf("status: metadata invalidate: %v", err)
	}
	return nil
}

// Resolve settles a pushed command on the event loop. On success the
// optimistic state stays in place; no refetch is needed. On failure every
// snapshot taken by Begin is restored in the same tick and a user-visible
// error is returned — unless a newer command has claimed the project, in
// which case the stale rollback is discarded to keep the newest issuance
// authoritative.
func (s *Sync) Resolve(cmd *Command, pushErr error) error {
	if pushErr == nil {
		if s.journal != nil {
			s.journal.Info("Project %s status set to %s", cmd.projectID, cmd.next)
		}
		s.store.Bus().Publish(store.TopicProjectsChanged, cmd.projectID)
		return nil
	}
	if !s.store.OwnsStatus(cmd.projectID, cmd.seq) {
		s.logf("status: superseded command for %s dropped after failure: %v", cmd.projectID, pushErr)
		return nil
	}
	s.store.RestoreStatus(cmd.snapshot)
	if s.journal != nil {
		s.journal.Warn("Status change for %s rolled back", cmd.projectID)
	}
	return fmt.Errorf("status: change for %s failed and was rolled back: %w", cmd.projectID, pushErr)
}

func (s *Sync) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
