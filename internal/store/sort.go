// internal/store/sort.go
//
// Sorting for the project list. Built-in keys compare case-normalized with
// locale-aware collation. External keys (deliverable dates) arrive
// asynchronously and are memoized into a projectID -> value table before
// sorting; a project absent from the table takes a sentinel that compares
// after every present value, so unknowns land last ascending and first
// descending. Ties on the active key fall back to the default name
// ordering. Sorting copies; the input slice is never reordered.

package store

import (
	"sort"
	"strings"

	"github.com/tallgrass/crewdeck/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey names a sortable column of the project list.
type SortKey string

const (
	SortByName            SortKey = "name"
	SortByClient          SortKey = "client"
	SortByNumber          SortKey = "project_number"
	SortByNextDeliverable SortKey = "next_deliverable"
	SortByPrevDeliverable SortKey = "previous_deliverable"
)

// SortDirection orders a key ascending or descending.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// SortDescriptor is the active sort selection.
type SortDescriptor struct {
	Key       SortKey
	Direction SortDirection
}

// Toggle returns the descriptor after the user picks a key: the same key
// flips direction, a new key resets to ascending.
func (d SortDescriptor) Toggle(key SortKey) SortDescriptor {
	if d.Key == key {
		if d.Direction == Ascending {
			return SortDescriptor{Key: key, Direction: Descending}
		}
		return SortDescriptor{Key: key, Direction: Ascending}
	}
	return SortDescriptor{Key: key, Direction: Ascending}
}

// IsExternal reports whether the key resolves through an externally supplied
// lookup table rather than a project field.
func (k SortKey) IsExternal() bool {
	return k == SortByNextDeliverable || k == SortByPrevDeliverable
}

// KeyResolver produces stable total orders over projects.
type KeyResolver struct {
	collator *collate.Collator
	external map[SortKey]map[string]string
}

// NewKeyResolver builds a resolver with locale-aware, case-insensitive
// collation.
func NewKeyResolver() *KeyResolver {
	return &KeyResolver{
		collator: collate.New(language.English, collate.IgnoreCase),
		external: map[SortKey]map[string]string{},
	}
}

// SetExternalKeys memoizes an asynchronously resolved projectID -> value
// table for an external sort key, replacing any previous table.
func (r *KeyResolver) SetExternalKeys(key SortKey, table map[string]string) {
	copied := make(map[string]string, len(table))
	for id, value := range table {
		copied[id] = value
	}
	r.external[key] = copied
}

// ExternalKeysLoaded reports whether a table exists for the key.
func (r *KeyResolver) ExternalKeysLoaded(key SortKey) bool {
	_, ok := r.external[key]
	return ok
}

// Sort returns a new ordered slice; the input is left untouched. The sort is
// stable for equal keys.
func (r *KeyResolver) Sort(projects []models.Project, desc SortDescriptor) []models.Project {
	out := make([]models.Project, len(projects))
	copy(out, projects)
	sort.SliceStable(out, func(i, j int) bool {
		return r.less(out[i], out[j], desc)
	})
	return out
}

func (r *KeyResolver) less(a, b models.Project, desc SortDescriptor) bool {
	cmp := r.compareKey(a, b, desc.Key)
	if desc.Direction == Descending {
		cmp = -cmp
	}
	if cmp != 0 {
		return cmp < 0
	}
	// Secondary ties always use the default name ordering, ascending,
	// regardless of the primary direction.
	if desc.Key != SortByName {
		if nameCmp := r.compareStrings(a.Name, b.Name); nameCmp != 0 {
			return nameCmp < 0
		}
	}
	return false
}

func (r *KeyResolver) compareKey(a, b models.Project, key SortKey) int {
	if key.IsExternal() {
		return r.compareExternal(a.ID, b.ID, key)
	}
	switch key {
	case SortByClient:
		return r.compareStrings(a.Client, b.Client)
	case SortByNumber:
		return r.compareStrings(a.ProjectNumber, b.ProjectNumber)
	default:
		return r.compareStrings(a.Name, b.Name)
	}
}

// compareExternal orders by the memoized table. Missing values compare
// greater than every present value; the direction flip in less() then puts
// them first when descending, which is the required sentinel behavior.
func (r *KeyResolver) compareExternal(aID, bID string, key SortKey) int {
	table := r.external[key]
	aVal, aOK := table[aID]
	bVal, bOK := table[bID]
	switch {
	case !aOK && !bOK:
		return 0
	case !aOK:
		return 1
	case !bOK:
		return -1
	}
	// Deliverable keys are canonical YYYY-MM-DD dates; byte order is
	// chronological.
	return strings.Compare(aVal, bVal)
}

func (r *KeyResolver) compareStrings(a, b string) int {
	return r.collator.CompareString(strings.TrimSpace(a), strings.TrimSpace(b))
}
