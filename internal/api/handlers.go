package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/cadence/internal/analytics"
	"github.com/hyperengineering/cadence/internal/broadcast"
	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/hyperengineering/cadence/internal/validation"
)

const maxNameLength = 200

// Handler implements the API handlers
type Handler struct {
	store       store.Store
	broadcaster *broadcast.Dispatcher
	apiKey      string
	version     string
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, b *broadcast.Dispatcher, apiKey, version string) *Handler {
	return &Handler{
		store:       s,
		broadcaster: b,
		apiKey:      apiKey,
		version:     version,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// parseDate accepts calendar dates ("2006-01-02") and RFC 3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		SprintCount: stats.SprintCount,
		TaskCount:   stats.TaskCount,
	})
}

// createSprintRequest is the POST /sprints payload.
type createSprintRequest struct {
	Name            string   `json:"name"`
	Goal            *string  `json:"goal"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	PlannedVelocity *float64 `json:"planned_velocity"`
}

// updateSprintRequest is the PUT /sprints/{id} payload; absent fields are
// left unchanged.
type updateSprintRequest struct {
	Name      *string `json:"name"`
	Goal      *string `json:"goal"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// ListSprints handles GET /api/v1/sprints
func (h *Handler) ListSprints(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	sprints, err := h.store.ListSprints(r.Context(), orgID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if sprints == nil {
		sprints = []types.Sprint{}
	}

	writeJSON(w, http.StatusOK, sprints)
}

// CreateSprint handles POST /api/v1/sprints
func (h *Handler) CreateSprint(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	var req createSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("name", req.Name))
	c.Add(validation.ValidateMaxLength("name", req.Name, maxNameLength))
	c.Add(validation.ValidateRequired("start_date", req.StartDate))
	c.Add(validation.ValidateRequired("end_date", req.EndDate))
	if req.PlannedVelocity != nil {
		c.Add(validation.ValidateNonNegative("planned_velocity", *req.PlannedVelocity))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields",
			[]validation.ValidationError{{Field: "start_date", Message: err.Error()}})
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields",
			[]validation.ValidationError{{Field: "end_date", Message: err.Error()}})
		return
	}
	if verr := validation.ValidateDateOrder("end_date", start, end); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields",
			[]validation.ValidationError{*verr})
		return
	}

	sprint, err := h.store.CreateSprint(r.Context(), types.NewSprint{
		Name:            req.Name,
		Goal:            req.Goal,
		StartDate:       start,
		EndDate:         end,
		OrganizationID:  orgID,
		PlannedVelocity: req.PlannedVelocity,
	})
	if err != nil {
		slog.Error("sprint creation failed", "error", err, "organization_id", orgID)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sprint)
}

// CurrentSprint handles GET /api/v1/sprints/current
func (h *Handler) CurrentSprint(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	sprints, err := h.store.ListSprints(r.Context(), orgID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	current := analytics.CurrentSprint(sprints, time.Now().UTC())
	writeJSON(w, http.StatusOK, types.CurrentSprintResponse{Sprint: current})
}

// GetSprint handles GET /api/v1/sprints/{id}
func (h *Handler) GetSprint(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	sprint, err := h.store.GetSprint(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sprint)
}

// UpdateSprint handles PUT /api/v1/sprints/{id}
func (h *Handler) UpdateSprint(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	var req updateSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	sprint, err := h.store.GetSprint(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if sprint.IsCompleted {
		WriteProblem(w, r, http.StatusConflict, "Sprint is already completed")
		return
	}

	if req.Name != nil {
		var c validation.Collector
		c.Add(validation.ValidateRequired("name", *req.Name))
		c.Add(validation.ValidateMaxLength("name", *req.Name, maxNameLength))
		if c.HasErrors() {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
			return
		}
		sprint.Name = *req.Name
	}
	if req.Goal != nil {
		sprint.Goal = req.Goal
	}
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil {
			WriteProblemWithErrors(w, r, "Request contains invalid fields",
				[]validation.ValidationError{{Field: "start_date", Message: err.Error()}})
			return
		}
		sprint.StartDate = start
	}
	if req.EndDate != nil {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			WriteProblemWithErrors(w, r, "Request contains invalid fields",
				[]validation.ValidationError{{Field: "end_date", Message: err.Error()}})
			return
		}
		sprint.EndDate = end
	}

	if verr := validation.ValidateDateOrder("end_date", sprint.StartDate, sprint.EndDate); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields",
			[]validation.ValidationError{*verr})
		return
	}

	if err := h.store.UpdateSprint(r.Context(), sprint); err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sprint)
}

// DeleteSprint handles DELETE /api/v1/sprints/{id}
func (h *Handler) DeleteSprint(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	if err := h.store.DeleteSprint(r.Context(), orgID, chi.URLParam(r, "id")); err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
