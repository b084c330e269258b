package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
)

// Recoverer is a middleware that recovers from panics.
// It logs the panic and returns a 500 in the API error shape.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}

					// Get request ID for correlation
					requestID := GetRequestID(r.Context())

					// Log the panic
					logger.Error("panic recovered",
						slog.String("request_id", requestID),
						slog.Any("panic", rvr),
						slog.String("stack", string(debug.Stack())),
					)

					// In development, also print to stderr for visibility
					if os.Getenv("APP_ENV") == "development" {
						debug.PrintStack()
					}

					writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
