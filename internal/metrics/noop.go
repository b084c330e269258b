package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncUserRegistered is a no-op.
func (n *NoopRecorder) IncUserRegistered() {}

// IncLoginFailed is a no-op.
func (n *NoopRecorder) IncLoginFailed() {}

// IncCourierRequested is a no-op.
func (n *NoopRecorder) IncCourierRequested() {}

// AddLitersCredited is a no-op.
func (n *NoopRecorder) AddLitersCredited(milliliters int64) {}

// IncCouponActivation is a no-op.
func (n *NoopRecorder) IncCouponActivation(status string) {}

// ObserveLedgerTxDuration is a no-op.
func (n *NoopRecorder) ObserveLedgerTxDuration(duration time.Duration) {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(status string) {}
