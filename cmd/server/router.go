package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tomhaynes/dragnet/internal/api"
	apiMiddleware "github.com/tomhaynes/dragnet/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.tasks, app.sources, app.ingestor, app.engine)
	searchHandler := api.NewSearchHandler(app.searches, app.tasks, app.engine)
	notificationHandler := api.NewNotificationHandler(app.notifications, app.engine)
	jobHandler := api.NewJobHandler(app.engine)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", taskHandler.CreateTask)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Get("/tasks/{id}/columns", taskHandler.GetTaskColumns)
		r.Delete("/tasks/{id}", taskHandler.DeleteTask)

		r.Post("/searches", searchHandler.CreateSearch)
		r.Get("/searches/{id}", searchHandler.GetSearch)

		r.Post("/notifications", notificationHandler.CreateNotification)
		r.Get("/notifications/{id}", notificationHandler.GetNotification)

		r.Get("/jobs/current", jobHandler.GetCurrentJobs)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
