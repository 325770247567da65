package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/cadence/internal/analytics"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/hyperengineering/cadence/internal/validation"
)

// createTaskRequest is the POST /tasks payload.
type createTaskRequest struct {
	Title          string  `json:"title"`
	StoryPoints    *int    `json:"story_points"`
	EstimatedHours *int    `json:"estimated_hours"`
	SprintID       *string `json:"sprint_id"`
}

// updateTaskStatusRequest is the PUT /tasks/{id}/status payload.
type updateTaskStatusRequest struct {
	Status string `json:"status"`
}

// assignTasksRequest is the POST /sprints/{id}/tasks payload.
type assignTasksRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// assignTasksResponse reports how many of the requested tasks were
// actually assigned; unknown or foreign IDs are skipped, not errors.
type assignTasksResponse struct {
	Assigned int `json:"assigned"`
}

// SprintTasks handles GET /api/v1/sprints/{id}/tasks
func (h *Handler) SprintTasks(w http.ResponseWriter, r *http.Request) {
	_, tasks, err := h.loadSprintWithTasks(r)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.SprintTasksResponse{
		Tasks: tasks,
		Stats: analytics.TaskStats(tasks),
	})
}

// AssignTasks handles POST /api/v1/sprints/{id}/tasks
func (h *Handler) AssignTasks(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	var req assignTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if len(req.TaskIDs) == 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields",
			[]validation.ValidationError{{Field: "task_ids", Message: "is required"}})
		return
	}

	assigned, err := h.store.AssignTasksToSprint(r.Context(), orgID, chi.URLParam(r, "id"), req.TaskIDs)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, assignTasksResponse{Assigned: assigned})
}

// UnassignTask handles DELETE /api/v1/sprints/{id}/tasks/{taskID}
func (h *Handler) UnassignTask(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	err := h.store.RemoveTaskFromSprint(r.Context(), orgID, chi.URLParam(r, "id"), chi.URLParam(r, "taskID"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateTask handles POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("title", req.Title))
	c.Add(validation.ValidateMaxLength("title", req.Title, maxNameLength))
	if req.StoryPoints != nil {
		c.Add(validation.ValidateNonNegative("story_points", float64(*req.StoryPoints)))
	}
	if req.EstimatedHours != nil {
		c.Add(validation.ValidateNonNegative("estimated_hours", float64(*req.EstimatedHours)))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	task, err := h.store.CreateTask(r.Context(), types.NewTask{
		Title:          req.Title,
		StoryPoints:    req.StoryPoints,
		EstimatedHours: req.EstimatedHours,
		SprintID:       req.SprintID,
		OrganizationID: orgID,
	})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// UpdateTaskStatus handles PUT /api/v1/tasks/{id}/status
func (h *Handler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	var req updateTaskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	status, err := types.ParseStatus(req.Status)
	if err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields",
			[]validation.ValidationError{*validation.ValidateEnum("status", req.Status, types.StatusValues())})
		return
	}

	task, err := h.store.UpdateTaskStatus(r.Context(), orgID, chi.URLParam(r, "id"), status)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}
