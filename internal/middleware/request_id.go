// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// TraceIDKey is the context key for trace ID.
	TraceIDKey contextKey = "trace_id"
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// TraceIDHeader is the HTTP header for trace ID.
const TraceIDHeader = "X-Trace-ID"

// maxIDLength bounds client-supplied correlation ids.
const maxIDLength = 128

// RequestID injects a unique request ID into each request.
// A well-formed X-Request-ID header is reused; anything else is replaced
// with a new UUID so untrusted values never reach the logs verbatim.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !isSafeID(requestID) {
			requestID = uuid.New().String()
		}

		// Get trace ID from header if present
		traceID := r.Header.Get(TraceIDHeader)
		if !isSafeID(traceID) {
			traceID = ""
		}

		// Add to context
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		if traceID != "" {
			ctx = context.WithValue(ctx, TraceIDKey, traceID)
		}

		// Add to response headers
		w.Header().Set(RequestIDHeader, requestID)
		if traceID != "" {
			w.Header().Set(TraceIDHeader, traceID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetTraceID retrieves the trace ID from context.
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

// isSafeID reports whether id is a non-empty, bounded token of
// letters, digits, '-', '_', '.' or ':'.
func isSafeID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}
