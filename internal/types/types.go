package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the closed set of task workflow states.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// statusNames is the canonical serialization table for Status.
var statusNames = map[Status]bool{
	StatusTodo:       true,
	StatusInProgress: true,
	StatusDone:       true,
	StatusCancelled:  true,
}

// ParseStatus returns the Status for a wire string, or an error for
// anything outside the canonical table.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !statusNames[st] {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether the status is in the canonical table.
func (s Status) Valid() bool {
	return statusNames[s]
}

// Terminal reports whether the status removes a task from remaining work.
// DONE and CANCELLED are the only terminal states.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// StatusValues returns all canonical status strings, for validation messages.
func StatusValues() []string {
	return []string{
		string(StatusTodo),
		string(StatusInProgress),
		string(StatusDone),
		string(StatusCancelled),
	}
}

// Sprint is a time-boxed iteration scoped to one organization.
// Velocity is nil until the sprint is completed; completion freezes it.
type Sprint struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Goal            *string    `json:"goal"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	OrganizationID  string     `json:"organization_id"`
	Velocity        *float64   `json:"velocity"`
	PlannedVelocity *float64   `json:"planned_velocity"`
	IsCompleted     bool       `json:"is_completed"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Task is the work-item projection the analytics engine consumes.
// StoryPoints and EstimatedHours are both optional; work-unit resolution
// prefers story points and falls back to hours.
type Task struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Status         Status    `json:"status"`
	StoryPoints    *int      `json:"story_points"`
	EstimatedHours *int      `json:"estimated_hours"`
	SprintID       *string   `json:"sprint_id"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSprint is the input type for creating sprints (without generated fields).
type NewSprint struct {
	Name            string
	Goal            *string
	StartDate       time.Time
	EndDate         time.Time
	OrganizationID  string
	PlannedVelocity *float64
}

// SprintUpdate carries the mutable sprint fields; nil means "leave as is".
type SprintUpdate struct {
	Name      *string
	Goal      *string
	StartDate *time.Time
	EndDate   *time.Time
}

// NewTask is the input type for creating tasks.
type NewTask struct {
	Title          string
	StoryPoints    *int
	EstimatedHours *int
	SprintID       *string
	OrganizationID string
}

// BurndownPoint is one sample of a burndown series. Points are generated
// fresh on each request and never persisted.
type BurndownPoint struct {
	Date          time.Time `json:"date"`
	RemainingWork float64   `json:"remaining_work"`
	IsIdeal       bool      `json:"is_ideal"`
}

// BurndownStatistics summarizes sprint progress alongside the series.
// DaysRemaining may be negative for overdue sprints; it is not clamped.
type BurndownStatistics struct {
	TotalWork            float64 `json:"total_work"`
	CompletedWork        float64 `json:"completed_work"`
	CompletionPercentage float64 `json:"completion_percentage"`
	DaysRemaining        int     `json:"days_remaining"`
}

// BurndownResponse is the GetBurndown result.
type BurndownResponse struct {
	Points     []BurndownPoint    `json:"points"`
	Statistics BurndownStatistics `json:"statistics"`
}

// CompletedWork holds both unit systems summed independently over
// terminal-status tasks.
type CompletedWork struct {
	StoryPoints int `json:"story_points"`
	Hours       int `json:"hours"`
}

// DailyVelocity is completed work divided by elapsed sprint days.
type DailyVelocity struct {
	StoryPoints float64 `json:"story_points"`
	Hours       float64 `json:"hours"`
}

// SprintVelocityResponse is the GetSprintVelocity result.
type SprintVelocityResponse struct {
	CompletedWork CompletedWork `json:"completed_work"`
	DailyVelocity DailyVelocity `json:"daily_velocity"`
	DaysElapsed   int           `json:"days_elapsed"`
}

// VelocityRecord is one completed sprint's contribution to the
// organization velocity trend.
type VelocityRecord struct {
	SprintID        string    `json:"sprint_id"`
	SprintName      string    `json:"sprint_name"`
	EndDate         time.Time `json:"end_date"`
	Velocity        float64   `json:"velocity"`
	PlannedVelocity *float64  `json:"planned_velocity"`
}

// OrganizationVelocityResponse is the GetOrganizationVelocity result.
type OrganizationVelocityResponse struct {
	AverageVelocity  float64          `json:"average_velocity"`
	CompletedSprints int              `json:"completed_sprints"`
	VelocityTrend    []VelocityRecord `json:"velocity_trend"`
}

// CompleteSprintResponse is the CompleteSprint result.
type CompleteSprintResponse struct {
	Velocity float64 `json:"velocity"`
}

// PlannedVelocityResponse is the UpdatePlannedVelocity result.
type PlannedVelocityResponse struct {
	PlannedVelocity float64 `json:"planned_velocity"`
}

// SprintTaskStats summarizes task completion for a sprint's task list.
type SprintTaskStats struct {
	TotalTasks            int     `json:"total_tasks"`
	CompletedTasks        int     `json:"completed_tasks"`
	CompletionPercentage  float64 `json:"completion_percentage"`
	TotalStoryPoints      int     `json:"total_story_points"`
	CompletedStoryPoints  int     `json:"completed_story_points"`
	StoryPointsPercentage float64 `json:"story_points_percentage"`
}

// SprintTasksResponse is the sprint task list result.
type SprintTasksResponse struct {
	Tasks []Task          `json:"tasks"`
	Stats SprintTaskStats `json:"stats"`
}

// CurrentSprintResponse wraps the current-sprint lookup. Sprint is null
// when no sprint's date range contains now; that is a reportable state,
// not an error.
type CurrentSprintResponse struct {
	Sprint *Sprint `json:"sprint"`
}

// HealthResponse is the health check result.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	SprintCount int64  `json:"sprint_count"`
	TaskCount   int64  `json:"task_count"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	SprintCount int64 `json:"sprint_count"`
	TaskCount   int64 `json:"task_count"`
}

// MarshalJSON ensures a nil points slice marshals as [] not null.
func (b BurndownResponse) MarshalJSON() ([]byte, error) {
	if b.Points == nil {
		b.Points = []BurndownPoint{}
	}
	type Alias BurndownResponse
	return json.Marshal(Alias(b))
}

// MarshalJSON ensures a nil trend slice marshals as [] not null.
func (o OrganizationVelocityResponse) MarshalJSON() ([]byte, error) {
	if o.VelocityTrend == nil {
		o.VelocityTrend = []VelocityRecord{}
	}
	type Alias OrganizationVelocityResponse
	return json.Marshal(Alias(o))
}

// MarshalJSON ensures a nil tasks slice marshals as [] not null.
func (s SprintTasksResponse) MarshalJSON() ([]byte, error) {
	if s.Tasks == nil {
		s.Tasks = []Task{}
	}
	type Alias SprintTasksResponse
	return json.Marshal(Alias(s))
}
