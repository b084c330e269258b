package model

import "github.com/shopspring/decimal"

// co2PerLiter is the CO2 saving in kilograms per liter of recycled oil.
var co2PerLiter = decimal.NewFromFloat(2.5)

// CollectionPoint is a drop-off location for used oil.
type CollectionPoint struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	OpeningHours string  `json:"opening_hours"`
}

// InfoPage is a static informational text.
type InfoPage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CommunityStats aggregates totals across all users. TotalOilCollected is
// the sum of current balances; TotalOilCredited also counts redeemed liters.
type CommunityStats struct {
	TotalUsers        int64           `json:"total_users"`
	TotalOilCollected decimal.Decimal `json:"total_oil_collected"`
	TotalOilCredited  decimal.Decimal `json:"total_oil_credited"`
}

// CO2SavedKg estimates the CO2 saved by the collected oil.
func (s CommunityStats) CO2SavedKg() decimal.Decimal {
	return s.TotalOilCollected.Mul(co2PerLiter)
}
