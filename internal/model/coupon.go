package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponValidity is how long an activated coupon stays redeemable.
const CouponValidity = 14 * 24 * time.Hour

// Coupon is a partner discount owned by one user.
// It moves from pending to activated exactly once.
type Coupon struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	PartnerName     string          `json:"partner_name"`
	PartnerLogo     string          `json:"partner_logo"`
	DiscountPercent int             `json:"discount_percent"`
	RequiredLiters  decimal.Decimal `json:"required_liters"`
	Activated       bool            `json:"activated"`
	Code            *string         `json:"code,omitempty"`
	ActivatedAt     *time.Time      `json:"activated_at,omitempty"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Position        int             `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
}

// IsEligible reports whether a balance covers the coupon's threshold.
func (c *Coupon) IsEligible(balance decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(c.RequiredLiters)
}

// IsExpired reports whether an activated coupon is past its validity window.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
