// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/colloil/colloil/internal/model"
)

// RegisterRequest represents the request body for creating an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Surname  string `json:"surname" validate:"required,notblank,max=100"`
	Phone    string `json:"phone" validate:"required,notblank,max=32"`
	Address  string `json:"address" validate:"required,notblank,max=500"`
	Nickname string `json:"nickname,omitempty" validate:"max=100"`
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest represents a partial profile update.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Surname  *string `json:"surname,omitempty" validate:"omitempty,max=100"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Nickname *string `json:"nickname,omitempty" validate:"omitempty,max=100"`
}

// ToPatch converts the request into a model patch.
func (r UpdateProfileRequest) ToPatch() model.ProfilePatch {
	return model.ProfilePatch{
		Name:     r.Name,
		Surname:  r.Surname,
		Phone:    r.Phone,
		Address:  r.Address,
		Nickname: r.Nickname,
	}
}

// CourierRequest represents the request body for a pickup.
type CourierRequest struct {
	OilLiters *float64 `json:"oil_liters" validate:"required,gt=0"`
	Address   string   `json:"address,omitempty" validate:"max=500"`
	Notes     string   `json:"notes,omitempty" validate:"max=1000"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// UserResponse represents a user profile in API responses.
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Surname        string    `json:"surname"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	Nickname       string    `json:"nickname"`
	TotalOilLiters float64   `json:"total_oil_liters"`
	CreatedAt      time.Time `json:"created_at"`
}

// CourierResponse represents a courier request in API responses.
type CourierResponse struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	OilLiters        float64   `json:"oil_liters"`
	Address          string    `json:"address"`
	Notes            string    `json:"notes,omitempty"`
	Status           string    `json:"status"`
	CourierName      string    `json:"courier_name"`
	EstimatedArrival time.Time `json:"estimated_arrival"`
	CreatedAt        time.Time `json:"created_at"`
}

// CouponResponse represents a coupon in API responses.
type CouponResponse struct {
	ID              string     `json:"id"`
	PartnerName     string     `json:"partner_name"`
	PartnerLogo     string     `json:"partner_logo"`
	DiscountPercent int        `json:"discount_percent"`
	RequiredLiters  float64    `json:"required_liters"`
	Code            *string    `json:"code"`
	Activated       bool       `json:"activated"`
	ExpiresAt       *time.Time `json:"expires_at"`
	Expired         bool       `json:"expired"`
}

// ActivationResponse is returned when a coupon is activated.
type ActivationResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CommunityResponse represents the community stats.
type CommunityResponse struct {
	Title             string  `json:"title"`
	TotalUsers        int64   `json:"total_users"`
	TotalOilCollected float64 `json:"total_oil_collected"`
	TotalOilCredited  float64 `json:"total_oil_credited"`
	CO2SavedKg        float64 `json:"co2_saved_kg"`
}

// SuccessResponse acknowledges a write with no payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Surname:        u.Surname,
		Phone:          u.Phone,
		Address:        u.Address,
		Nickname:       u.Nickname,
		TotalOilLiters: u.TotalOilLiters.InexactFloat64(),
		CreatedAt:      u.CreatedAt,
	}
}

// ToCourierResponse converts a CourierRequest model to CourierResponse DTO.
func ToCourierResponse(r *model.CourierRequest) CourierResponse {
	return CourierResponse{
		ID:               r.ID,
		UserID:           r.UserID,
		OilLiters:        r.OilLiters.InexactFloat64(),
		Address:          r.Address,
		Notes:            r.Notes,
		Status:           string(r.Status),
		CourierName:      r.CourierName,
		EstimatedArrival: r.EstimatedArrival,
		CreatedAt:        r.CreatedAt,
	}
}

// ToCourierList converts courier requests, never returning nil.
func ToCourierList(requests []*model.CourierRequest) []CourierResponse {
	out := make([]CourierResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, ToCourierResponse(r))
	}
	return out
}

// ToCouponList converts coupons, never returning nil. Expired is evaluated at now.
func ToCouponList(coupons []*model.Coupon, now time.Time) []CouponResponse {
	out := make([]CouponResponse, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, CouponResponse{
			ID:              c.ID,
			PartnerName:     c.PartnerName,
			PartnerLogo:     c.PartnerLogo,
			DiscountPercent: c.DiscountPercent,
			RequiredLiters:  c.RequiredLiters.InexactFloat64(),
			Code:            c.Code,
			Activated:       c.Activated,
			ExpiresAt:       c.ExpiresAt,
			Expired:         c.IsExpired(now),
		})
	}
	return out
}

// ToCommunityResponse converts community stats.
func ToCommunityResponse(title string, s model.CommunityStats) CommunityResponse {
	return CommunityResponse{
		Title:             title,
		TotalUsers:        s.TotalUsers,
		TotalOilCollected: s.TotalOilCollected.InexactFloat64(),
		TotalOilCredited:  s.TotalOilCredited.InexactFloat64(),
		CO2SavedKg:        s.CO2SavedKg().InexactFloat64(),
	}
}
