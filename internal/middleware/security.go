package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// SecurityConfig holds configuration for security headers.
type SecurityConfig struct {
	// IsDevelopment disables HSTS in dev environments.
	IsDevelopment bool
	// MaxRequestBodySize is the max allowed request body in bytes.
	// Default: 1MB (1048576 bytes).
	MaxRequestBodySize int64
	// CacheablePaths serve static catalog content and get a short public
	// cache lifetime instead of no-store.
	CacheablePaths []string
	// CacheMaxAge is the max-age applied to CacheablePaths. Default: 5m.
	CacheMaxAge time.Duration
}

// DefaultSecurityConfig returns sensible defaults for production.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		IsDevelopment:      false,
		MaxRequestBodySize: 1 << 20, // 1MB
		CacheMaxAge:        5 * time.Minute,
	}
}

// Security returns a middleware that applies security headers to all responses.
// This middleware should be applied early in the chain.
//
// Headers applied:
//   - Strict-Transport-Security (HSTS) - only in production
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - X-XSS-Protection: 0 (disabled, CSP is the modern approach)
//   - Referrer-Policy: strict-origin-when-cross-origin
//   - Content-Security-Policy: minimal policy for API responses
//   - Permissions-Policy: restrictive policy
//   - Cross-Origin-Opener-Policy and Cross-Origin-Resource-Policy: same-origin
//   - Cache-Control: no-store, or public for CacheablePaths on GET
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	cacheable := make(map[string]struct{}, len(cfg.CacheablePaths))
	for _, p := range cfg.CacheablePaths {
		cacheable[p] = struct{}{}
	}
	maxAge := cfg.CacheMaxAge
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	publicCache := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// === Prevent MIME type sniffing ===
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// === Prevent clickjacking ===
			w.Header().Set("X-Frame-Options", "DENY")

			// === Disable legacy XSS filter (CSP is the modern approach) ===
			// Setting to "0" prevents false positives in older browsers.
			w.Header().Set("X-XSS-Protection", "0")

			// === Control referrer information ===
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// === Content Security Policy (minimal for API) ===
			// Very restrictive since we're an API, not serving HTML.
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// === Permissions Policy (disable unused browser features) ===
			w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()")

			// === Cross-origin isolation ===
			// CORP only governs no-cors loads; CORS fetches from the frontend still pass.
			w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
			w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")

			// === HSTS (only in production with HTTPS) ===
			// max-age=31536000 = 1 year
			// includeSubDomains ensures all subdomains use HTTPS
			// preload allows submission to browser preload lists
			if !cfg.IsDevelopment {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			// === Prevent caching sensitive data ===
			// Only static catalog reads may be cached.
			if _, ok := cacheable[r.URL.Path]; ok && r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", publicCache)
			} else {
				w.Header().Set("Cache-Control", "no-store")
			}

			// === Remove server identification (if not overridden) ===
			w.Header().Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize returns a middleware that limits request body size.
// This prevents denial-of-service via large request bodies.
//
// When the limit is exceeded, the connection is closed and subsequent
// reads return an error.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}

			// Wrap body with MaxBytesReader for streaming protection
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
