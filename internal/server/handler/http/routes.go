package http

import (
	"net/http"

	"github.com/atinyakov/EnrollKeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the enrollment endpoints under /api.
//
// Routes:
//
//	POST /api/register       → Register
//	POST /api/assign-course  → AssignCourse
//	POST /api/verify         → Verify
//	GET  /api/courses        → Courses
//
// Middleware chain (applied in order):
//  1. WithRequestID                      — assigns X-Request-ID
//  2. WithRequestLogging(logger)         — logs served requests
//  3. Recoverer                          — turns panics into 500
//  4. AllowContentType on POST routes    — rejects non-JSON bodies
func NewRouter(h *EnrollmentHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithRequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/courses", h.Courses)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Post("/register", h.Register)
			r.Post("/assign-course", h.AssignCourse)
			r.Post("/verify", h.Verify)
		})
	})

	return r
}
