// internal/store/store.go
//
// The session store owns every client-side copy of project data: the cached
// list pages, the detail cache, and the single selected project. It is
// constructed once per session and torn down on exit; coordinators receive
// it by reference, there is no package-level state. All writes go through
// methods on Store so the invariant "at most one canonical status per
// project id across all caches at rest" has a single enforcement point.

package store

import (
	"sync"

	"github.com/tallgrass/crewdeck/internal/models"
)

// Store is the per-session cache root.
type Store struct {
	mu       sync.RWMutex
	pages    map[string][]models.Project
	detail   map[string]models.Project
	selected *models.Project

	// statusOwner records, per project, the sequence of the newest status
	// command that touched it. A superseded command may neither commit nor
	// roll back; see internal/status.
	statusOwner map[string]uint64
	statusSeq   uint64

	meta *FilterMetadata
	bus  *Bus
}

// New constructs an empty session store.
func New(loader MetadataLoader, logger Logger) *Store {
	return &Store{
		pages:       map[string][]models.Project{},
		detail:      map[string]models.Project{},
		statusOwner: map[string]uint64{},
		meta:        NewFilterMetadata(loader, logger),
		bus:         NewBus(logger),
	}
}

// Metadata exposes the filter metadata cache.
func (s *Store) Metadata() *FilterMetadata { return s.meta }

// Bus exposes the change bus.
func (s *Store) Bus() *Bus { return s.bus }

// Teardown releases subscriptions. Called once when the session ends.
func (s *Store) Teardown() { s.bus.Teardown() }

// SetPage caches one query page. The key is the caller's query signature
// (query text + filter + page number).
func (s *Store) SetPage(key string, projects []models.Project) {
	copied := make([]models.Project, len(projects))
	copy(copied, projects)
	s.mu.Lock()
	s.pages[key] = copied
	s.mu.Unlock()
}

// Page returns a copy of a cached page.
func (s *Store) Page(key string) ([]models.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[key]
	if !ok {
		return nil, false
	}
	out := make([]models.Project, len(page))
	copy(out, page)
	return out, true
}

// DropPages clears every cached page, forcing the next render to refetch.
func (s *Store) DropPages() {
	s.mu.Lock()
	s.pages = map[string][]models.Project{}
	s.mu.Unlock()
}

// SetDetail caches the detail copy of a project.
func (s *Store) SetDetail(project models.Project) {
	s.mu.Lock()
	s.detail[project.ID] = project
	if s.selected != nil && s.selected.ID == project.ID {
		copied := project
		s.selected = &copied
	}
	s.mu.Unlock()
}

// Detail returns the cached detail copy.
func (s *Store) Detail(projectID string) (models.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.detail[projectID]
	return project, ok
}

// Select marks a project as the current selection, caching a copy.
func (s *Store) Select(project models.Project) {
	copied := project
	s.mu.Lock()
	s.selected = &copied
	s.detail[project.ID] = project
	s.mu.Unlock()
}

// ClearSelection drops the selected copy.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

// Selected returns the current selection, if any.
func (s *Store) Selected() (models.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return models.Project{}, false
	}
	return *s.selected, true
}

// StatusSnapshot records the prior status of every cache copy of one
// project, so a failed optimistic update can restore all of them together.
type StatusSnapshot struct {
	ProjectID string
	Pages     map[string]models.ProjectStatus
	Detail    *models.ProjectStatus
	Selected  *models.ProjectStatus
}

// SnapshotStatus captures the status held by every cache copy of projectID.
func (s *Store) SnapshotStatus(projectID string) StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StatusSnapshot{ProjectID: projectID, Pages: map[string]models.ProjectStatus{}}
	for key, page := range s.pages {
		for i := range page {
			if page[i].ID == projectID {
				snap.Pages[key] = page[i].Status
				break
			}
		}
	}
	if project, ok := s.detail[projectID]; ok {
		status := project.Status
		snap.Detail = &status
	}
	if s.selected != nil && s.selected.ID == projectID {
		status := s.selected.Status
		snap.Selected = &status
	}
	return snap
}

// ApplyStatus writes a status to every cache copy of the project in one
// critical section, so no reader can observe disagreeing copies.
func (s *Store) ApplyStatus(projectID string, status models.ProjectStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyStatusLocked(projectID, status)
}

func (s *Store) applyStatusLocked(projectID string, status models.ProjectStatus) {
	for _, page := range s.pages {
		for i := range page {
			if page[i].ID == projectID {
				page[i].Status = status
			}
		}
	}
	if project, ok := s.detail[projectID]; ok {
		project.Status = status
		s.detail[projectID] = project
	}
	if s.selected != nil && s.selected.ID == projectID {
		s.selected.Status = status
	}
}

// ClaimStatus registers a new status command for the project and returns its
// sequence. The newest claim owns the project's cached status.
func (s *Store) ClaimStatus(projectID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusSeq++
	s.statusOwner[projectID] = s.statusSeq
	return s.statusSeq
}

// OwnsStatus reports whether seq is still the newest status claim for the
// project.
func (s *Store) OwnsStatus(projectID string, seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusOwner[projectID] == seq
}

// RestoreStatus puts every snapshotted copy back in one critical section.
// Copies that existed at snapshot time but have since been evicted are
// skipped; copies that appeared afterwards are left alone.
func (s *Store) RestoreStatus(snap StatusSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, status := range snap.Pages {
		page, ok := s.pages[key]
		if !ok {
			continue
		}
		for i := range page {
			if page[i].ID == snap.ProjectID {
				page[i].Status = status
			}
		}
	}
	if snap.Detail != nil {
		if project, ok := s.detail[snap.ProjectID]; ok {
			project.Status = *snap.Detail
			s.detail[snap.ProjectID] = project
		}
	}
	if snap.Selected != nil && s.selected != nil && s.selected.ID == snap.ProjectID {
		s.selected.Status = *snap.Selected
	}
}
