package handler

import (
	"log/slog"
	"net/http"

	"github.com/colloil/colloil/internal/handler/dto"
	"github.com/colloil/colloil/internal/service"
)

// InfoHandler serves the public informational endpoints.
type InfoHandler struct {
	svc    *service.InfoService
	logger *slog.Logger
}

// NewInfoHandler creates a new InfoHandler.
func NewInfoHandler(svc *service.InfoService, logger *slog.Logger) *InfoHandler {
	return &InfoHandler{svc: svc, logger: logger}
}

// CollectionPoints handles GET /api/collection-points.
func (h *InfoHandler) CollectionPoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CollectionPoints())
}

// Page returns a handler for GET /api/info/{name}.
func (h *InfoHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.svc.Page(name)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// Community handles GET /api/info/community.
func (h *InfoHandler) Community(w http.ResponseWriter, r *http.Request) {
	community, err := h.svc.Community(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCommunityResponse(community.Title, community.Stats))
}
