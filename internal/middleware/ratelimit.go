package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/colloil/colloil/internal/cache"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Cache   *cache.Cache
	Enabled bool
	// Scope separates buckets of different route groups, e.g. "auth".
	Scope string
	RPS   int // Requests per second
	Burst int
}

// RateLimitIP returns middleware that rate limits requests per client IP.
// It guards the unauthenticated auth routes against credential stuffing.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)

			result, err := cfg.Cache.CheckIPRateLimit(r.Context(), cfg.Scope, ip, cfg.RPS, cfg.Burst)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("scope", cfg.Scope),
				)
				// Fail open - allow request
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.Burst, result.Remaining, result.ResetAt)

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", cfg.Scope),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retryAfterSeconds(retryAfter)))
}

// retryAfterSeconds rounds up so clients never retry too early.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests,
// and strips the port from RemoteAddr.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For first (may contain multiple IPs)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
