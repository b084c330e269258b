package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/colloil/colloil/internal/auth"
	"github.com/colloil/colloil/internal/cache"
	"github.com/colloil/colloil/internal/model"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserChecker confirms a token subject still has an account.
type UserChecker interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Tokens TokenVerifier
	Users  UserChecker
	Cache  *cache.Cache
}

// Auth returns a middleware that authenticates API requests.
// It extracts the bearer token from the Authorization header,
// verifies it, and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fail := func(reason, message string) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w, message)
			}

			token := extractBearerToken(r)
			if token == "" {
				fail("missing_token", "Authentication required")
				return
			}

			// Check cache first
			cacheKey := auth.QuickHash(token)
			authCtx, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey)
			if authCtx != nil {
				serveAuthenticated(w, r, next, authCtx)
				return
			}

			claims, err := cfg.Tokens.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					fail("expired_token", "Token expired")
					return
				}
				fail("invalid_token", "Invalid token")
				return
			}

			exists, err := cfg.Users.UserExists(r.Context(), claims.UserID)
			if err != nil {
				cfg.Logger.Error("user lookup failed during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w, "Authentication unavailable")
				return
			}
			if !exists {
				fail("user_not_found", "User not found")
				return
			}

			authCtx = &model.AuthContext{
				UserID:    claims.UserID,
				ExpiresAt: claims.ExpiresAt.Time,
			}
			_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)

			serveAuthenticated(w, r, next, authCtx)
		})
	}
}

func serveAuthenticated(w http.ResponseWriter, r *http.Request, next http.Handler, authCtx *model.AuthContext) {
	setLogUserID(r.Context(), authCtx.UserID)
	ctx := auth.ContextWithAuth(r.Context(), authCtx)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// writeAuthError writes a 401 Unauthorized response.
func writeAuthError(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}
