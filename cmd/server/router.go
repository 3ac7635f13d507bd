package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/imagetask-api/internal/api"
	apiMiddleware "github.com/phrazzld/imagetask-api/internal/api/middleware"
)

// setupRouter creates the chi router with the API routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	healthHandler := api.NewHealthHandler(app.stores.Tasks, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", taskHandler.CreateTask)
		r.Get("/tasks/{"+api.TaskIDParam+"}", taskHandler.GetTask)
	})

	r.Get("/health", healthHandler.Health)

	return r
}
