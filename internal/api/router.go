package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/quantum-task-core/internal/auth"
)

// healthCheckTimeout bounds the database ping made by /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.correlationIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// User API
	r.Route("/api/v1", func(r chi.Router) {
		// Health check and metrics (no identity required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate(auth.RoleUser))

			r.With(s.requirePermission(auth.PermDeviceRead)).Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{deviceId}", s.handleGetDevice)
			})

			r.Route("/tasks/{action}", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermTaskSubmit)).Post("/", s.handleSubmitTask)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermTaskManage))
					r.Get("/", s.handleListTasks)
					r.Get("/{taskId}", s.handleGetTask)
					r.Delete("/{taskId}", s.handleDeleteTask)
					r.Get("/{taskId}/status", s.handleGetTaskStatus)
					r.Post("/{taskId}/cancel", s.handleCancelTask)
				})
			})

			r.With(s.requirePermission(auth.PermResultRead)).Get("/results/{action}/{taskId}", s.handleGetResult)

			// Legacy job view of tasks
			r.Route("/jobs", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermTaskSubmit)).Post("/", s.handleSubmitJob)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermTaskManage))
					r.Get("/", s.handleListJobs)
					r.Get("/{jobId}", s.handleGetJob)
					r.Delete("/{jobId}", s.handleDeleteJob)
					r.Get("/{jobId}/status", s.handleGetJobStatus)
					r.Post("/{jobId}/cancel", s.handleCancelJob)
				})
			})

			r.With(s.requirePermission(auth.PermTaskManage)).Get("/ws", s.handleWebSocket)
		})
	})

	// Provider API
	r.Route("/provider/v1", func(r chi.Router) {
		r.Use(s.authenticate(auth.RoleProvider))

		r.With(s.requirePermission(auth.PermDeviceUpdate)).Patch("/devices/{deviceId}", s.handleUpdateDevice)

		r.Route("/tasks", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermTaskFetch))
				r.Get("/", s.handleProviderListTasks)
				r.Get("/unfetched", s.handleFetchTasks)
				r.Get("/{taskId}", s.handleProviderGetTask)
			})
			r.With(s.requirePermission(auth.PermTaskUpdate)).Patch("/{taskId}", s.handleUpdateTaskStatus)
		})

		r.With(s.requirePermission(auth.PermResultWrite)).Post("/results", s.handleCreateResult)
	})

	return s.telemetry.HTTPMiddleware("qtask-core")(r)
}

// handleHealth returns the server health status. A failing database ping
// reports 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "unavailable",
				"version": s.version,
				"detail":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
