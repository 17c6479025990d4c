package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the board API, liveness and live channel routes.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	if h.WS != nil {
		r.Handle("/ws", h.WS)
	}

	r.Route("/api", func(r chi.Router) {
		// Projects
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)

		// Tasks (nested under projects)
		r.Get("/projects/{project}/tasks", h.ListTasks)
		r.Post("/projects/{project}/tasks", h.CreateTask)
		r.Get("/projects/{project}/tasks/{id}", h.GetTask)
		r.Put("/projects/{project}/tasks/{id}", h.UpdateTask)
		r.Put("/projects/{project}/tasks/{id}/state", h.SetTaskState)
		r.Post("/projects/{project}/tasks/{id}/comments", h.AddComment)

		// Tasks (unscoped)
		r.Get("/tasks", h.ListAllTasks)
		r.Post("/tasks", h.CreateDefaultTask)
		r.Get("/tasks/{id}", h.FindTask)

		// Costs
		r.Get("/task-costs", h.TaskCosts)
		r.Get("/task-costs/{taskId}", h.TaskCost)
	})
}
