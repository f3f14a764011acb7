package api

import "github.com/tallgrass/crewdeck/internal/models"

// ListProjectsOptions narrows and pages the project list.
type ListProjectsOptions struct {
	Query    string
	Status   models.ProjectStatus
	Page     int
	PageSize int
}

// ProjectPage is one page of the project list plus the total match count.
type ProjectPage struct {
	Items []models.Project `json:"items"`
	Total int              `json:"total"`
}

// CreateAssignmentRequest creates an assignment for a project. PersonID may
// be empty for placeholder roles.
type CreateAssignmentRequest struct {
	ProjectID   string             `json:"project_id"`
	PersonID    string             `json:"person_id,omitempty"`
	Role        string             `json:"role,omitempty"`
	WeeklyHours map[string]float64 `json:"weekly_hours"`
}

// AssignmentPatch is a partial update. Nil fields are left untouched.
type AssignmentPatch struct {
	PersonID    *string            `json:"person_id,omitempty"`
	Role        *string            `json:"role,omitempty"`
	WeeklyHours map[string]float64 `json:"weekly_hours,omitempty"`
}

// AvailabilityOptions scopes an availability lookup.
type AvailabilityOptions struct {
	CandidatesOnly  bool
	Department      string
	IncludeChildren bool
}

// SkillMatchOptions scopes a skill-match request.
type SkillMatchOptions struct {
	Department string
	Limit      int
}

// SkillScore is one backend-computed relevance score.
type SkillScore struct {
	PersonID string  `json:"person_id"`
	Score    float64 `json:"score"`
}

// Capabilities describes optional backend features the client can use.
type Capabilities struct {
	AsyncSkillMatch bool `json:"async_skill_match"`
}

// JobStatus is the poll response for an asynchronous skill-match job.
type JobStatus struct {
	Status string       `json:"status"` // "pending", "running", "done", "failed"
	Result []SkillScore `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type conflictResponse struct {
	Warnings []string `json:"warnings"`
}

type filterMetadataResponse struct {
	ProjectFilters map[string]models.FilterMetadataEntry `json:"project_filters"`
}

type jobHandle struct {
	JobID string `json:"job_id"`
}
