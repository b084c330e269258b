// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Coupon activation outcomes.
const (
	ActivationSuccess      = "success"
	ActivationInsufficient = "insufficient_balance"
	ActivationRejected     = "rejected"
)

// Event publish outcomes.
const (
	PublishSuccess = "success"
	PublishDropped = "dropped"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncUserRegistered()
	IncLoginFailed()

	// Ledger metrics
	IncCourierRequested()
	AddLitersCredited(milliliters int64)
	IncCouponActivation(status string) // status: "success", "insufficient_balance", "rejected"
	ObserveLedgerTxDuration(duration time.Duration)

	// Event sink metrics
	IncEventPublished(status string) // status: "success" or "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
