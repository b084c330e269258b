package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/colloil/colloil/internal/handler/dto"
	"github.com/colloil/colloil/internal/service"
)

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeAndValidate reads a JSON body into dst and checks its struct tags.
// It writes the error response itself and reports whether the caller may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	if fields := dto.Validate(dst); fields != nil {
		writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   "Validation failed",
			Code:    "VALIDATION_FAILED",
			Details: fields,
		})
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		insufficient *service.InsufficientBalanceError
		invalid      *service.ValidationError
	)

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: "Insufficient oil balance",
			Code:  "INSUFFICIENT_BALANCE",
			Details: map[string]any{
				"required_liters": insufficient.Required.InexactFloat64(),
				"current_liters":  insufficient.Current.InexactFloat64(),
			},
		})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   "Validation failed",
			Code:    "VALIDATION_FAILED",
			Details: map[string]any{invalid.Field: invalid.Message},
		})
	case errors.Is(err, service.ErrEmailExists):
		writeError(w, http.StatusBadRequest, "EMAIL_EXISTS", "Email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "User not found")
	case errors.Is(err, service.ErrCouponNotFound):
		writeError(w, http.StatusNotFound, "COUPON_NOT_FOUND", "Coupon not found")
	case errors.Is(err, service.ErrCouponAlreadyActivated):
		writeError(w, http.StatusBadRequest, "COUPON_ALREADY_ACTIVATED", "Coupon already activated")
	case errors.Is(err, service.ErrPageNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
