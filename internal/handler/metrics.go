package handler

import (
	"fmt"
	"net/http"

	"github.com/mangos/mangos/internal/metrics"
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

	writeMetric(w, "mangos_created_total %d\n", snap.MangosCreated)
	writeMetric(w, "mangos_updated_total %d\n", snap.MangosUpdated)
	writeMetric(w, "mangos_deleted_total %d\n", snap.MangosDeleted)

	writeMetric(w, "mangos_rejected_total{reason=\"permission_denied\"} %d\n", snap.AccessDenied)
	writeMetric(w, "mangos_rejected_total{reason=\"validation\"} %d\n", snap.ValidationFailed)

	writeMetric(w, "mangos_lookup_duration_seconds_count %d\n", snap.LookupDurationCount)
	writeMetric(w, "mangos_lookup_duration_seconds_sum %.6f\n", float64(snap.LookupDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
