// internal/api/client.go
//
// Outbound client for the staffing backend. Every business computation
// (conflict detection, utilization, skill ranking) happens server-side;
// this client only moves requests and responses. All blocking calls take a
// context and return explicit errors; nothing here touches the caches.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tallgrass/crewdeck/internal/models"
)

// Client talks to the crewdeck staffing API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new staffing API client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for non-2xx responses that carry an API error body.
type StatusError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s - %s (http %d)", e.Code, e.Message, e.HTTPStatus)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("api: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("api: decode response: %w", err)
	}
	if !env.Success {
		serr := &StatusError{HTTPStatus: resp.StatusCode, Code: "unknown", Message: "request failed"}
		if env.Error != nil {
			serr.Code = env.Error.Code
			serr.Message = env.Error.Message
		}
		return nil, resp.StatusCode, serr
	}
	return env.Data, resp.StatusCode, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	data, _, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(data, out)
}

func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	data, _, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decode(data, out)
}

func decode(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode payload: %w", err)
	}
	return nil
}

// Capabilities reports which optional features the backend supports. Callers
// treat errors as "no optional features".
func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	var caps Capabilities
	err := c.get(ctx, "/api/v1/capabilities", &caps)
	return caps, err
}

// ListProjects fetches one page of the project list.
func (c *Client) ListProjects(ctx context.Context, opts ListProjectsOptions) (ProjectPage, error) {
	q := url.Values{}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	path := "/api/v1/projects"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page ProjectPage
	err := c.get(ctx, path, &page)
	return page, err
}

// UpdateProjectStatus persists a status change and returns the updated row.
func (c *Client) UpdateProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus) (models.Project, error) {
	in := struct {
		Status models.ProjectStatus `json:"status"`
	}{Status: status}
	var project models.Project
	err := c.send(ctx, http.MethodPatch, "/api/v1/projects/"+url.PathEscape(projectID), in, &project)
	return project, err
}

// FilterMetadata fetches the server-precomputed per-project filter flags.
func (c *Client) FilterMetadata(ctx context.Context) (map[string]models.FilterMetadataEntry, error) {
	var resp filterMetadataResponse
	if err := c.get(ctx, "/api/v1/projects/filter-metadata", &resp); err != nil {
		return nil, err
	}
	return resp.ProjectFilters, nil
}

// DeliverableDates returns the asynchronously maintained projectID -> date
// tables backing the deliverable sort keys.
func (c *Client) DeliverableDates(ctx context.Context) (next, prev map[string]string, err error) {
	var resp struct {
		Next map[string]string `json:"next"`
		Prev map[string]string `json:"prev"`
	}
	if err := c.get(ctx, "/api/v1/projects/deliverable-dates", &resp); err != nil {
		return nil, nil, err
	}
	return resp.Next, resp.Prev, nil
}

// ListAssignments returns every assignment of a project.
func (c *Client) ListAssignments(ctx context.Context, projectID string) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := c.get(ctx, "/api/v1/assignments?project="+url.QueryEscape(projectID), &assignments)
	return assignments, err
}

// CreateAssignment creates an assignment and returns the stored row.
func (c *Client) CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (models.Assignment, error) {
	var assignment models.Assignment
	err := c.send(ctx, http.MethodPost, "/api/v1/assignments", req, &assignment)
	return assignment, err
}

// UpdateAssignment applies a partial update and returns the stored row.
func (c *Client) UpdateAssignment(ctx context.Context, assignmentID string, patch AssignmentPatch) (models.Assignment, error) {
	var assignment models.Assignment
	err := c.send(ctx, http.MethodPatch, "/api/v1/assignments/"+url.PathEscape(assignmentID), patch, &assignment)
	return assignment, err
}

// DeleteAssignment removes an assignment.
func (c *Client) DeleteAssignment(ctx context.Context, assignmentID string) error {
	return c.send(ctx, http.MethodDelete, "/api/v1/assignments/"+url.PathEscape(assignmentID), nil, nil)
}

// CheckConflicts asks the backend whether adding deltaHours for a person in a
// given week would overallocate them. Pure advisory read, no side effects.
func (c *Client) CheckConflicts(ctx context.Context, personID, projectID, weekKey string, deltaHours float64) ([]string, error) {
	in := struct {
		PersonID   string  `json:"person_id"`
		ProjectID  string  `json:"project_id"`
		WeekKey    string  `json:"week_key"`
		DeltaHours float64 `json:"delta_hours"`
	}{personID, projectID, weekKey, deltaHours}
	var resp conflictResponse
	if err := c.send(ctx, http.MethodPost, "/api/v1/assignments/check-conflicts", in, &resp); err != nil {
		return nil, err
	}
	return resp.Warnings, nil
}

// GetAvailability returns availability rows for a project week.
func (c *Client) GetAvailability(ctx context.Context, projectID, weekKey string, opts AvailabilityOptions) ([]models.AvailabilityRow, error) {
	q := url.Values{}
	q.Set("week", weekKey)
	if opts.CandidatesOnly {
		q.Set("candidates_only", "true")
	}
	if opts.Department != "" {
		q.Set("department", opts.Department)
	}
	if opts.IncludeChildren {
		q.Set("include_children", "true")
	}
	var rows []models.AvailabilityRow
	err := c.get(ctx, "/api/v1/projects/"+url.PathEscape(projectID)+"/availability?"+q.Encode(), &rows)
	return rows, err
}

// Directory lists the people pool, optionally scoped to a department.
func (c *Client) Directory(ctx context.Context, department string) ([]models.Person, error) {
	path := "/api/v1/people"
	if department != "" {
		path += "?department=" + url.QueryEscape(department)
	}
	var people []models.Person
	err := c.get(ctx, path, &people)
	return people, err
}

// SkillMatch scores people against the given skills synchronously.
func (c *Client) SkillMatch(ctx context.Context, skills []string, opts SkillMatchOptions) ([]SkillScore, error) {
	in := struct {
		Skills     []string `json:"skills"`
		Department string   `json:"department,omitempty"`
		Limit      int      `json:"limit,omitempty"`
	}{skills, opts.Department, opts.Limit}
	var scores []SkillScore
	err := c.send(ctx, http.MethodPost, "/api/v1/people/skill-match", in, &scores)
	return scores, err
}

// SkillMatchAsync submits a skill-match job for large candidate pools and
// returns its job ID.
func (c *Client) SkillMatchAsync(ctx context.Context, skills []string, opts SkillMatchOptions) (string, error) {
	in := struct {
		Skills     []string `json:"skills"`
		Department string   `json:"department,omitempty"`
		Limit      int      `json:"limit,omitempty"`
	}{skills, opts.Department, opts.Limit}
	var handle jobHandle
	if err := c.send(ctx, http.MethodPost, "/api/v1/people/skill-match/jobs", in, &handle); err != nil {
		return "", err
	}
	if handle.JobID == "" {
		return "", errors.New("api: job submission returned no job id")
	}
	return handle.JobID, nil
}

// ErrJobTimeout is returned when an async job does not finish inside the
// polling window.
var ErrJobTimeout = errors.New("api: job polling timed out")

// PollJob polls an async skill-match job until it settles or the timeout
// elapses.
func (c *Client) PollJob(ctx context.Context, jobID string, interval, timeout time.Duration) ([]SkillScore, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var status JobStatus
		if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(jobID), &status); err != nil {
			return nil, err
		}
		switch status.Status {
		case "done":
			return status.Result, nil
		case "failed":
			return nil, fmt.Errorf("api: job %s failed: %s", jobID, status.Error)
		}
		if timeout > 0 && time.Now().After(deadline) {
			return nil, ErrJobTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
