package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/EnrollKeeper/internal/models"
	"github.com/atinyakov/EnrollKeeper/internal/service"
	"github.com/atinyakov/EnrollKeeper/internal/store"
	"go.uber.org/zap"
)

// fakeService implements EnrollmentService for testing.
type fakeService struct {
	registerErr error
	assignErr   error
	verifyRes   service.Result
	verifyErr   error

	gotUsername string
	gotSecret   string
	gotCourse   string
	gotPrice    string
}

func (f *fakeService) Register(ctx context.Context, username, secret string) (models.Account, error) {
	f.gotUsername, f.gotSecret = username, secret
	if f.registerErr != nil {
		return models.Account{}, f.registerErr
	}
	return models.Account{ID: 7, Username: username, ProtectedSecret: "$argon2id$..."}, nil
}

func (f *fakeService) AssignEnrollment(ctx context.Context, username, course, price string) (models.Enrollment, error) {
	f.gotUsername, f.gotCourse, f.gotPrice = username, course, price
	if f.assignErr != nil {
		return models.Enrollment{}, f.assignErr
	}
	return models.Enrollment{Course: course, Description: "d", Price: price}, nil
}

func (f *fakeService) VerifyAndList(ctx context.Context, username, secret string) (service.Result, error) {
	f.gotUsername, f.gotSecret = username, secret
	return f.verifyRes, f.verifyErr
}

func (f *fakeService) Courses() []string {
	return []string{"Основы Git"}
}

func serve(t *testing.T, fn http.HandlerFunc, body string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	fn(rec, req)
	res := rec.Result()
	t.Cleanup(func() { res.Body.Close() })

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(res.Body); err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return res, buf.String()
}

func TestEnrollmentHandler_Register(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		service        *fakeService
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:           "invalid JSON",
			body:           `not a json`,
			service:        &fakeService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request",
		},
		{
			name:           "invalid input",
			body:           `{"username":"","password":"x"}`,
			service:        &fakeService{registerErr: service.ErrInvalidInput},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request",
		},
		{
			name:           "duplicate username",
			body:           `{"username":"bob","password":"x"}`,
			service:        &fakeService{registerErr: service.ErrDuplicateUsername},
			expectedCode:   http.StatusConflict,
			expectedSubstr: "user already exists",
		},
		{
			name:           "store failure",
			body:           `{"username":"bob","password":"x"}`,
			service:        &fakeService{registerErr: fmt.Errorf("%w: %w", service.ErrStoreUnavailable, store.ErrWriteFailure)},
			expectedCode:   http.StatusInternalServerError,
			expectedSubstr: "internal error",
		},
		{
			name:           "success",
			body:           `{"username":"alice","password":"p@ss1"}`,
			service:        &fakeService{},
			expectedCode:   http.StatusCreated,
			expectedSubstr: `"username":"alice"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &EnrollmentHandler{Service: tt.service, Log: zap.NewNop()}
			res, body := serve(t, h.Register, tt.body)

			if res.StatusCode != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, res.StatusCode)
			}
			if !strings.Contains(body, tt.expectedSubstr) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedSubstr, body)
			}
			if strings.Contains(body, "argon2id") || strings.Contains(body, "p@ss1") {
				t.Errorf("response leaks credential material: %q", body)
			}
		})
	}
}

func TestEnrollmentHandler_AssignCourse(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		err          error
		expectedCode int
	}{
		{"invalid JSON", `{`, nil, http.StatusBadRequest},
		{"unknown user", `{"username":"ghost","course":"Основы Git"}`, service.ErrAccountNotFound, http.StatusNotFound},
		{"duplicate", `{"username":"alice","course":"Основы Git"}`, service.ErrDuplicateEnrollment, http.StatusConflict},
		{"unexpected", `{"username":"alice","course":"Основы Git"}`, errors.New("boom"), http.StatusInternalServerError},
		{"success", `{"username":"alice","course":"Основы Git","price":"990"}`, nil, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{assignErr: tt.err}
			h := &EnrollmentHandler{Service: svc}
			res, body := serve(t, h.AssignCourse, tt.body)

			if res.StatusCode != tt.expectedCode {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedCode, res.StatusCode, body)
			}
			if tt.name == "success" {
				var entry models.Enrollment
				if err := json.Unmarshal([]byte(body), &entry); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if entry.Course != "Основы Git" || entry.Price != "990" || svc.gotPrice != "990" {
					t.Errorf("unexpected entry %+v", entry)
				}
			}
		})
	}
}

func TestEnrollmentHandler_Verify(t *testing.T) {
	matched := service.Result{Matched: true, Enrollments: []models.Enrollment{{Course: "Основы Git"}}}
	noMatch := service.Result{Enrollments: []models.Enrollment{}}

	tests := []struct {
		name         string
		svc          *fakeService
		expectedCode int
		expectedBody string
	}{
		{"match", &fakeService{verifyRes: matched}, http.StatusOK, `"matched":true`},
		{"no match", &fakeService{verifyRes: noMatch}, http.StatusOK, `{"matched":false,"enrollments":[]}`},
		{"invalid", &fakeService{verifyErr: service.ErrInvalidInput}, http.StatusBadRequest, "invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &EnrollmentHandler{Service: tt.svc}
			res, body := serve(t, h.Verify, `{"username":"alice","password":"p@ss1"}`)

			if res.StatusCode != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, res.StatusCode)
			}
			if !strings.Contains(body, tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, body)
			}
			if tt.svc.gotUsername != "alice" || tt.svc.gotSecret != "p@ss1" {
				t.Errorf("service got %q/%q", tt.svc.gotUsername, tt.svc.gotSecret)
			}
		})
	}
}

func TestNewRouter(t *testing.T) {
	router := NewRouter(&EnrollmentHandler{Service: &fakeService{}}, zap.NewNop())

	t.Run("courses", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/courses", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Основы Git") {
			t.Fatalf("GET /api/courses = %d %q", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
	})

	t.Run("register requires JSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader("username=a"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("expected 415, got %d", rec.Code)
		}
	})

	t.Run("register", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"username":"a","password":"b"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
