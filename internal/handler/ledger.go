package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/colloil/colloil/internal/auth"
	"github.com/colloil/colloil/internal/handler/dto"
	"github.com/colloil/colloil/internal/service"
)

// LedgerHandler handles courier, coupon and notification requests.
type LedgerHandler struct {
	ledger   *service.LedgerService
	activity *service.ActivityService
	logger   *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *service.LedgerService, activity *service.ActivityService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:   ledger,
		activity: activity,
		logger:   logger,
	}
}

// RequestCourier handles POST /api/courier/request.
func (h *LedgerHandler) RequestCourier(w http.ResponseWriter, r *http.Request) {
	var req dto.CourierRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	courier, err := h.ledger.RequestCourier(r.Context(), userID, service.CourierInput{
		OilLiters: *req.OilLiters,
		Address:   req.Address,
		Notes:     req.Notes,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("courier_requested",
		"user_id", userID,
		"request_id", courier.ID,
		"oil_liters", courier.OilLiters.String(),
	)

	writeJSON(w, http.StatusOK, dto.ToCourierResponse(courier))
}

// CourierHistory handles GET /api/courier/history.
func (h *LedgerHandler) CourierHistory(w http.ResponseWriter, r *http.Request) {
	requests, err := h.activity.CourierHistory(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCourierList(requests))
}

// ListCoupons handles GET /api/coupons.
func (h *LedgerHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.activity.Coupons(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCouponList(coupons, time.Now()))
}

// ActivateCoupon handles POST /api/coupons/{id}/activate.
func (h *LedgerHandler) ActivateCoupon(w http.ResponseWriter, r *http.Request) {
	couponID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	activation, err := h.ledger.ActivateCoupon(r.Context(), userID, couponID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("coupon_activated",
		"user_id", userID,
		"coupon_id", couponID,
		"partner", activation.PartnerName,
	)

	writeJSON(w, http.StatusOK, dto.ActivationResponse{Code: activation.Code, ExpiresAt: activation.ExpiresAt})
}

// ListNotifications handles GET /api/notifications.
func (h *LedgerHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.activity.Notifications(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead handles PUT /api/notifications/{id}/read.
func (h *LedgerHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.activity.MarkNotificationRead(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}
