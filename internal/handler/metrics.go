package handler

import (
	"fmt"
	"net/http"

	"github.com/colloil/colloil/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "colloil_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "colloil_logins_failed_total %d\n", snap.LoginsFailed)

	writeMetric(w, "colloil_courier_requests_total %d\n", snap.CourierRequests)
	writeMetric(w, "colloil_oil_credited_liters_total %.3f\n", float64(snap.MillilitersCredited)/1000)

	writeMetric(w, "colloil_coupon_activations_total{status=\"success\"} %d\n", snap.CouponsActivated)
	writeMetric(w, "colloil_coupon_activations_total{status=\"insufficient_balance\"} %d\n", snap.CouponsInsufficient)
	writeMetric(w, "colloil_coupon_activations_total{status=\"rejected\"} %d\n", snap.CouponsRejected)

	writeMetric(w, "colloil_ledger_tx_duration_seconds_count %d\n", snap.LedgerTxCount)
	writeMetric(w, "colloil_ledger_tx_duration_seconds_sum %.6f\n", float64(snap.LedgerTxDurationTotalNs)/1e9)

	writeMetric(w, "colloil_events_published_total{status=\"success\"} %d\n", snap.EventsPublished)
	writeMetric(w, "colloil_events_published_total{status=\"dropped\"} %d\n", snap.EventsDropped)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
