// Package middleware provides HTTP middlewares for request tracing and logging.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// WithRequestID stores a request id in the request context, taking it from
// the X-Request-ID header when present and generating a uuid otherwise. The
// id is echoed back in the response header.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestIDFromContext returns the request id, or an empty string.
func GetRequestIDFromContext(ctx context.Context) string {
	val := ctx.Value(requestIDKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
