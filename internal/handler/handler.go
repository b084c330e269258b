// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"net/http"
)

// Handler serves the service-level endpoints.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Root reports that the API is up.
// GET /api/
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"message": "Colloil API v1.0",
		"status":  "running",
	}
	writeJSON(w, http.StatusOK, response)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
