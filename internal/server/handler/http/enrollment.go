// Package http exposes the enrollment service as JSON endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/EnrollKeeper/internal/models"
	"github.com/atinyakov/EnrollKeeper/internal/service"
	"go.uber.org/zap"
)

// EnrollmentService defines the operations required by the handlers.
type EnrollmentService interface {
	Register(ctx context.Context, username, secret string) (models.Account, error)
	AssignEnrollment(ctx context.Context, username, course, price string) (models.Enrollment, error)
	VerifyAndList(ctx context.Context, username, secret string) (service.Result, error)
	Courses() []string
}

// EnrollmentHandler handles registration, course assignment and verification.
type EnrollmentHandler struct {
	// Service performs the underlying operations.
	Service EnrollmentService
	// Log records unexpected failures; nil disables it.
	Log *zap.Logger
}

// CredentialsRequest is the payload of register and verify.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AssignRequest is the payload of assign-course.
type AssignRequest struct {
	Username string `json:"username"`
	Course   string `json:"course"`
	Price    string `json:"price,omitempty"`
}

// Register handles POST /api/register.
func (h *EnrollmentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	acc, err := h.Service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       acc.ID,
		"username": acc.Username,
	})
}

// AssignCourse handles POST /api/assign-course.
func (h *EnrollmentHandler) AssignCourse(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	entry, err := h.Service.AssignEnrollment(r.Context(), req.Username, req.Course, req.Price)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// Verify handles POST /api/verify. A wrong password and an unknown username
// both answer 200 with matched=false.
func (h *EnrollmentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	res, err := h.Service.VerifyAndList(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Courses handles GET /api/courses.
func (h *EnrollmentHandler) Courses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Courses())
}

func (h *EnrollmentHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		http.Error(w, "invalid request", http.StatusBadRequest)
	case errors.Is(err, service.ErrDuplicateUsername):
		http.Error(w, "user already exists", http.StatusConflict)
	case errors.Is(err, service.ErrDuplicateEnrollment):
		http.Error(w, "course already assigned", http.StatusConflict)
	case errors.Is(err, service.ErrAccountNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	default:
		if h.Log != nil {
			h.Log.Error("request failed", zap.Error(err))
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
