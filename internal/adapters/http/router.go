// Package http provides the inbound HTTP adapter including routing and server lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/handlers"
)

// Handlers bundles every inbound handler the router mounts.
type Handlers struct {
	Stages     *handlers.StageHandler
	Tasks      *handlers.TaskHandler
	StageTimer *handlers.TimerHandler
	TaskTimer  *handlers.TimerHandler
	Templates  *handlers.TemplateHandler
	Feed       *handlers.FeedHandler
	Health     *handlers.HealthHandler
}

// NewRouter creates an HTTP handler with all application routes registered.
// Middleware is applied globally in the order given.
func NewRouter(h Handlers, middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	// Health endpoints (outside /api/v1 prefix).
	r.Get("/health/live", h.Health.Liveness)
	r.Get("/health/ready", h.Health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		// Templates independent of an owner.
		r.Get("/templates", h.Templates.ListTemplates)
		r.Get("/templates/{templateID}", h.Templates.GetTemplate)
		r.Patch("/templates/{templateID}", h.Templates.UpdateTemplate)
		r.Delete("/templates/{templateID}", h.Templates.DeleteTemplate)

		r.Route("/owners/{ownerID}", func(r chi.Router) {
			r.Get("/summary", h.Stages.Summary)
			r.Get("/feed", h.Feed.ServeHTTP)

			r.Post("/templates", h.Templates.SaveAsTemplate)
			r.Post("/templates/{templateID}/apply", h.Templates.ApplyTemplate)

			r.Get("/stages", h.Stages.ListStages)
			r.Post("/stages", h.Stages.AddStage)
			r.Post("/stages/reorder", h.Stages.ReorderStages)
			r.Post("/stages/bulk-delete", h.Stages.BulkDeleteStages)
			r.Post("/stages/paste", h.Stages.PasteStage)
			r.Post("/stages/copy-from", h.Stages.CopyFromOwner)

			r.Route("/stages/{stageKey}", func(r chi.Router) {
				r.Patch("/", h.Stages.UpdateStage)
				r.Delete("/", h.Stages.DeleteStage)
				r.Put("/folder", h.Stages.AssignFolder)
				r.Get("/copy", h.Stages.CopyStage)
				r.Post("/template", h.Templates.SaveStageAsTemplate)
				r.Post("/tasks", h.Stages.AddTasks)
				r.Post("/tasks/reorder", h.Stages.ReorderTasks)
				mountTimer(r, h.StageTimer)
			})

			r.Post("/tasks/bulk-delete", h.Tasks.BulkDeleteTasks)
			r.Route("/tasks/{taskID}", func(r chi.Router) {
				r.Patch("/", h.Tasks.UpdateTask)
				r.Delete("/", h.Tasks.DeleteTask)
				r.Post("/toggle", h.Tasks.ToggleTask)
				r.Put("/completed-at", h.Tasks.SetCompletedAt)
				r.Patch("/style", h.Tasks.UpdateStyle)
				mountTimer(r, h.TaskTimer)
			})
		})
	})

	return r
}

func mountTimer(r chi.Router, t *handlers.TimerHandler) {
	r.Post("/timer", t.Start)
	r.Post("/timer/stop", t.Stop)
	r.Post("/timer/target", t.Target)
	r.Post("/timer/style", t.CycleStyle)
}
