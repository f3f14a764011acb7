// internal/store/filtermeta.go
//
// Server-derived per-project filter flags (assignment count, future
// deliverables). The cache has three observable states per project: a fresh
// entry, unknown (absent), and a sticky load failure. Unknown is never
// defaulted; filter predicates over unknown data return false, a documented
// conservative policy so an unloaded cache can never silently admit or
// drop rows.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tallgrass/crewdeck/internal/models"
)

// ErrMetadataUnavailable marks a sticky metadata load failure. Filters that
// depend on metadata fall back to no-match until Refetch succeeds.
var ErrMetadataUnavailable = errors.New("store: filter metadata unavailable")

// MetadataLoader fetches the full per-project metadata table.
type MetadataLoader func(ctx context.Context) (map[string]models.FilterMetadataEntry, error)

// FilterMetadata caches the metadata table with an explicit epoch. The epoch
// increments on every invalidation so views can tell whether the table they
// rendered from is still current.
type FilterMetadata struct {
	mu      sync.RWMutex
	loader  MetadataLoader
	entries map[string]models.FilterMetadataEntry
	epoch   uint64
	loaded  bool
	loadErr error
	logger  Logger
}

// NewFilterMetadata constructs an empty (unknown-everything) cache.
func NewFilterMetadata(loader MetadataLoader, logger Logger) *FilterMetadata {
	return &FilterMetadata{loader: loader, logger: logger}
}

// Get returns the entry for a project. ok is false when the entry is
// unknown, whether because the table was never loaded, the project is
// absent from it, or the last load failed.
func (m *FilterMetadata) Get(projectID string) (models.FilterMetadataEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded || m.loadErr != nil {
		return models.FilterMetadataEntry{}, false
	}
	entry, ok := m.entries[projectID]
	return entry, ok
}

// Invalidate clears the table and synchronously refetches it. Callers await
// this after any mutation that could change assignment counts or
// deliverable dates, before the affected list re-renders, so the list never
// shows metadata older than the mutation that just happened.
func (m *FilterMetadata) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	m.entries = nil
	m.loaded = false
	m.epoch++
	m.mu.Unlock()
	return m.load(ctx)
}

// Refetch is the explicit user-facing retry after a load failure.
func (m *FilterMetadata) Refetch(ctx context.Context) error {
	return m.load(ctx)
}

// EnsureLoaded fetches the table if it was never loaded. Cheap when fresh.
func (m *FilterMetadata) EnsureLoaded(ctx context.Context) error {
	m.mu.RLock()
	ready := m.loaded && m.loadErr == nil
	m.mu.RUnlock()
	if ready {
		return nil
	}
	return m.load(ctx)
}

func (m *FilterMetadata) load(ctx context.Context) error {
	if m.loader == nil {
		return fmt.Errorf("store: no metadata loader configured: %w", ErrMetadataUnavailable)
	}
	entries, err := m.loader(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.loadErr = fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
		m.loaded = false
		if m.logger != nil {
			m.logger.Printf("store: filter metadata load failed: %v", err)
		}
		return m.loadErr
	}
	m.entries = entries
	m.loaded = true
	m.loadErr = nil
	return nil
}

// Err returns the sticky load error, or nil when the cache is healthy.
func (m *FilterMetadata) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadErr
}

// Epoch returns the current invalidation epoch.
func (m *FilterMetadata) Epoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// HasAssignments evaluates the "has assignments" filter predicate. Unknown
// metadata yields false.
func (m *FilterMetadata) HasAssignments(projectID string) bool {
	entry, ok := m.Get(projectID)
	return ok && entry.AssignmentCount > 0
}

// HasFutureDeliverables evaluates the "has future deliverables" predicate.
// Unknown metadata yields false.
func (m *FilterMetadata) HasFutureDeliverables(projectID string) bool {
	entry, ok := m.Get(projectID)
	return ok && entry.HasFutureDeliverables
}
