package handler

import (
	"log/slog"
	"net/http"

	"github.com/colloil/colloil/internal/auth"
	"github.com/colloil/colloil/internal/handler/dto"
	"github.com/colloil/colloil/internal/service"
)

// AccountHandler handles registration, login and profile requests.
type AccountHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		svc:    svc,
		logger: logger,
	}
}

// Register handles POST /api/auth/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Surname:  req.Surname,
		Phone:    req.Phone,
		Address:  req.Address,
		Nickname: req.Nickname,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_registered", "user_id", res.UserID)

	writeJSON(w, http.StatusOK, dto.AuthResponse{Token: res.Token, UserID: res.UserID})
}

// Login handles POST /api/auth/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{Token: res.Token, UserID: res.UserID})
}

// GetProfile handles GET /api/user/profile.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetProfile(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// UpdateProfile handles PUT /api/user/profile.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), auth.UserIDFromContext(r.Context()), req.ToPatch())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}
