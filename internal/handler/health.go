package handler

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 5 * time.Second

// HealthChecker is a dependency that can report whether it is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name    string
	checker HealthChecker
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler creates a HealthHandler that checks the ledger store,
// labelled by storeName, and the Redis cache. A nil checker is reported as
// "not configured" and does not fail readiness.
func NewHealthHandler(storeName string, store, cache HealthChecker) *HealthHandler {
	return &HealthHandler{deps: []dependency{
		{name: storeName, checker: store},
		{name: "redis", checker: cache},
	}}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz handles GET /healthz. It never touches dependencies.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz handles GET /readyz, returning 503 when any configured dependency fails its ping.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	code := http.StatusOK
	for _, d := range h.deps {
		switch {
		case d.checker == nil:
			resp.Checks[d.name] = "not configured"
		default:
			if err := d.checker.Ping(ctx); err != nil {
				resp.Checks[d.name] = "error: " + err.Error()
				resp.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[d.name] = "ok"
		}
	}

	writeJSON(w, code, resp)
}
