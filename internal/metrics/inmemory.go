package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered         uint64
	LoginsFailed            uint64
	CourierRequests         uint64
	MillilitersCredited     int64
	CouponsActivated        uint64
	CouponsInsufficient     uint64
	CouponsRejected         uint64
	LedgerTxCount           uint64
	LedgerTxDurationTotalNs int64
	EventsPublished         uint64
	EventsDropped           uint64
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	usersRegistered         uint64
	loginsFailed            uint64
	courierRequests         uint64
	millilitersCredited     int64
	couponsActivated        uint64
	couponsInsufficient     uint64
	couponsRejected         uint64
	ledgerTxCount           uint64
	ledgerTxDurationTotalNs int64
	eventsPublished         uint64
	eventsDropped           uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:         atomic.LoadUint64(&m.usersRegistered),
		LoginsFailed:            atomic.LoadUint64(&m.loginsFailed),
		CourierRequests:         atomic.LoadUint64(&m.courierRequests),
		MillilitersCredited:     atomic.LoadInt64(&m.millilitersCredited),
		CouponsActivated:        atomic.LoadUint64(&m.couponsActivated),
		CouponsInsufficient:     atomic.LoadUint64(&m.couponsInsufficient),
		CouponsRejected:         atomic.LoadUint64(&m.couponsRejected),
		LedgerTxCount:           atomic.LoadUint64(&m.ledgerTxCount),
		LedgerTxDurationTotalNs: atomic.LoadInt64(&m.ledgerTxDurationTotalNs),
		EventsPublished:         atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:           atomic.LoadUint64(&m.eventsDropped),
	}
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	atomic.AddUint64(&m.usersRegistered, 1)
}

// IncLoginFailed increments the failed login counter.
func (m *InMemoryRecorder) IncLoginFailed() {
	atomic.AddUint64(&m.loginsFailed, 1)
}

// IncCourierRequested increments the courier request counter.
func (m *InMemoryRecorder) IncCourierRequested() {
	atomic.AddUint64(&m.courierRequests, 1)
}

// AddLitersCredited adds to the credited volume, in milliliters.
func (m *InMemoryRecorder) AddLitersCredited(milliliters int64) {
	atomic.AddInt64(&m.millilitersCredited, milliliters)
}

// IncCouponActivation counts an activation attempt by outcome.
func (m *InMemoryRecorder) IncCouponActivation(status string) {
	switch status {
	case ActivationSuccess:
		atomic.AddUint64(&m.couponsActivated, 1)
	case ActivationInsufficient:
		atomic.AddUint64(&m.couponsInsufficient, 1)
	default:
		atomic.AddUint64(&m.couponsRejected, 1)
	}
}

// ObserveLedgerTxDuration records how long a balance-changing transaction took.
func (m *InMemoryRecorder) ObserveLedgerTxDuration(duration time.Duration) {
	atomic.AddUint64(&m.ledgerTxCount, 1)
	atomic.AddInt64(&m.ledgerTxDurationTotalNs, duration.Nanoseconds())
}

// IncEventPublished counts a domain event by publish outcome.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	if status == PublishSuccess {
		atomic.AddUint64(&m.eventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.eventsDropped, 1)
}
