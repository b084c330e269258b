package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CourierStatus is the lifecycle state of a pickup request.
type CourierStatus string

// CourierStatusPending is the only state a request is created in.
const CourierStatusPending CourierStatus = "pending"

// CourierRequest is an oil pickup that credits the owner's balance.
// Records are append-only.
type CourierRequest struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	OilLiters        decimal.Decimal `json:"oil_liters"`
	Address          string          `json:"address"`
	Notes            string          `json:"notes,omitempty"`
	Status           CourierStatus   `json:"status"`
	CourierName      string          `json:"courier_name"`
	EstimatedArrival time.Time       `json:"estimated_arrival"`
	CreatedAt        time.Time       `json:"created_at"`
}
