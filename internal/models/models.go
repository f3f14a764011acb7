// internal/models/models.go
//
// Shared data shapes exchanged between the backend client, the session store
// and the coordinators. These are plain values; ownership rules (who may
// mutate which cache) live in internal/store.

package models

// ProjectStatus enumerates the lifecycle states a project can be in.
type ProjectStatus string

const (
	StatusActive   ProjectStatus = "active"
	StatusOnHold   ProjectStatus = "on_hold"
	StatusClosed   ProjectStatus = "closed"
	StatusArchived ProjectStatus = "archived"
)

// KnownStatuses lists every status in display order.
var KnownStatuses = []ProjectStatus{StatusActive, StatusOnHold, StatusClosed, StatusArchived}

// Project is the denormalized list/detail row owned by the server. The client
// holds cached copies per query page plus optionally one selected copy; after
// any settled mutation every cached copy must agree on Status.
type Project struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Client        string        `json:"client"`
	ProjectNumber string        `json:"project_number"`
	Status        ProjectStatus `json:"status"`
}

// Assignment links a project to a person, or to a placeholder role when
// PersonID is empty. WeeklyHours maps canonical Monday week keys to
// non-negative hour counts. The map is never shared in place; every edit
// produces a fresh map.
type Assignment struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"project_id"`
	PersonID    string             `json:"person_id,omitempty"`
	Role        string             `json:"role,omitempty"`
	WeeklyHours map[string]float64 `json:"weekly_hours"`
}

// IsPlaceholder reports whether the assignment is an unfilled role.
func (a Assignment) IsPlaceholder() bool { return a.PersonID == "" }

// Hours returns the hours booked for the given week key (zero when absent).
func (a Assignment) Hours(weekKey string) float64 { return a.WeeklyHours[weekKey] }

// CloneHours returns an independent copy of the weekly-hours map so edits
// never alias the cached value.
func (a Assignment) CloneHours() map[string]float64 {
	out := make(map[string]float64, len(a.WeeklyHours))
	for k, v := range a.WeeklyHours {
		out[k] = v
	}
	return out
}

// FilterMetadataEntry is the server-derived per-project summary used to
// evaluate list filters without per-row queries. Absence of an entry means
// unknown, never zero.
type FilterMetadataEntry struct {
	AssignmentCount       int  `json:"assignment_count"`
	HasFutureDeliverables bool `json:"has_future_deliverables"`
}

// Person is a member of the staffing pool.
type Person struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Department string   `json:"department,omitempty"`
	Skills     []string `json:"skills,omitempty"`
}

// AvailabilityRow is one row of the availability lookup for a project week.
type AvailabilityRow struct {
	PersonID           string  `json:"person_id"`
	AvailableHours     float64 `json:"available_hours"`
	UtilizationPercent float64 `json:"utilization_percent"`
	TotalHours         float64 `json:"total_hours"`
	Capacity           float64 `json:"capacity"`
}

// SearchResult is a person merged with availability and skill-match data.
// Ephemeral: recomputed on every search, never cached.
type SearchResult struct {
	Person
	AvailableHours     float64
	UtilizationPercent float64
	TotalHours         float64
	SkillMatchScore    float64
	HasSkillMatch      bool
}
