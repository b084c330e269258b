// Package model defines domain entities for the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered household account and the owner of an oil balance.
type User struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	PasswordHash   string          `json:"-"`
	Name           string          `json:"name"`
	Surname        string          `json:"surname"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	Nickname       string          `json:"nickname"`
	TotalOilLiters decimal.Decimal `json:"total_oil_liters"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ProfilePatch holds a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Name     *string
	Surname  *string
	Phone    *string
	Address  *string
	Nickname *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Surname == nil && p.Phone == nil && p.Address == nil && p.Nickname == nil
}

// AuthContext holds the authenticated caller.
// It is injected into the request context by the auth middleware.
type AuthContext struct {
	UserID    string
	ExpiresAt time.Time
}
