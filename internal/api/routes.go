package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (auth + organization scoping)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.Use(OrgMiddleware)

			r.Route("/sprints", func(r chi.Router) {
				r.Get("/", h.ListSprints)
				r.Post("/", h.CreateSprint)
				r.Get("/current", h.CurrentSprint)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetSprint)
					r.Put("/", h.UpdateSprint)
					r.Delete("/", h.DeleteSprint)
					r.Get("/tasks", h.SprintTasks)
					r.Post("/tasks", h.AssignTasks)
					r.Delete("/tasks/{taskID}", h.UnassignTask)
					r.Get("/burndown", h.Burndown)
					r.Get("/velocity", h.SprintVelocity)
					r.Post("/complete", h.CompleteSprint)
					r.Put("/planned-velocity", h.UpdatePlannedVelocity)
				})
			})

			r.Get("/velocity", h.OrganizationVelocity)
			r.Post("/tasks", h.CreateTask)
			r.Put("/tasks/{id}/status", h.UpdateTaskStatus)
		})
	})

	return r
}
