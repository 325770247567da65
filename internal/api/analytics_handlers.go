package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/cadence/internal/analytics"
	"github.com/hyperengineering/cadence/internal/broadcast"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/hyperengineering/cadence/internal/validation"
)

// plannedVelocityRequest is the PUT /sprints/{id}/planned-velocity payload.
type plannedVelocityRequest struct {
	PlannedVelocity float64 `json:"planned_velocity"`
}

// loadSprintWithTasks materializes a sprint and its task set in one place;
// every analytics handler starts from this pair.
func (h *Handler) loadSprintWithTasks(r *http.Request) (*types.Sprint, []types.Task, error) {
	orgID := MustOrgIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sprint, err := h.store.GetSprint(r.Context(), orgID, id)
	if err != nil {
		return nil, nil, err
	}

	tasks, err := h.store.ListTasksBySprint(r.Context(), orgID, id)
	if err != nil {
		return nil, nil, err
	}

	return sprint, tasks, nil
}

// Burndown handles GET /api/v1/sprints/{id}/burndown
func (h *Handler) Burndown(w http.ResponseWriter, r *http.Request) {
	sprint, tasks, err := h.loadSprintWithTasks(r)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analytics.Burndown(*sprint, tasks, time.Now().UTC()))
}

// SprintVelocity handles GET /api/v1/sprints/{id}/velocity
func (h *Handler) SprintVelocity(w http.ResponseWriter, r *http.Request) {
	sprint, tasks, err := h.loadSprintWithTasks(r)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analytics.SprintVelocityMetrics(*sprint, tasks, time.Now().UTC()))
}

// CompleteSprint handles POST /api/v1/sprints/{id}/complete
func (h *Handler) CompleteSprint(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	sprint, tasks, err := h.loadSprintWithTasks(r)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	velocity, err := analytics.Complete(sprint, tasks)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	// The store guard keeps a concurrent double-completion from freezing
	// two velocities; the losing writer observes the conflict here.
	if err := h.store.CompleteSprint(r.Context(), orgID, sprint.ID, velocity); err != nil {
		MapStoreError(w, r, err)
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.Enqueue(broadcast.Event{
			Type:           broadcast.EventSprintCompleted,
			OrganizationID: orgID,
			SprintID:       sprint.ID,
			SprintName:     sprint.Name,
			Velocity:       velocity,
			OccurredAt:     time.Now().UTC(),
		})
	}

	slog.Info("sprint completed",
		"sprint_id", sprint.ID,
		"organization_id", orgID,
		"velocity", velocity,
	)

	writeJSON(w, http.StatusOK, types.CompleteSprintResponse{Velocity: velocity})
}

// UpdatePlannedVelocity handles PUT /api/v1/sprints/{id}/planned-velocity
func (h *Handler) UpdatePlannedVelocity(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	var req plannedVelocityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	sprint, err := h.store.GetSprint(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	if err := analytics.SetPlannedVelocity(sprint, req.PlannedVelocity); err != nil {
		if errors.Is(err, analytics.ErrNegativePlannedVelocity) {
			WriteProblemWithErrors(w, r, "Request contains invalid fields",
				[]validation.ValidationError{{Field: "planned_velocity", Message: "must not be negative"}})
			return
		}
		MapStoreError(w, r, err)
		return
	}

	if err := h.store.UpdatePlannedVelocity(r.Context(), orgID, sprint.ID, req.PlannedVelocity); err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.PlannedVelocityResponse{PlannedVelocity: req.PlannedVelocity})
}

// OrganizationVelocity handles GET /api/v1/velocity
func (h *Handler) OrganizationVelocity(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrgIDFromContext(r.Context())

	completed, err := h.store.ListCompletedSprints(r.Context(), orgID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analytics.OrganizationVelocity(completed))
}
