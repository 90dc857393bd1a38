package api

import (
	"net/http"

	"github.com/hyperengineering/farmcost/internal/store"
)

// Status handles GET /status: per table missing counts, where numeric
// columns count zero as missing only when declared so.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Report(r.Context(), store.ReportOptions{})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	h.metrics.ObserveQuality(report)
	WriteJSON(w, http.StatusOK, report.Tables)
}

// RealTimeInfo handles GET /real_time_info: the grand total and the table
// with the most missing cells, counting zero as missing in every numeric
// column.
func (h *Handler) RealTimeInfo(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Report(r.Context(), store.ReportOptions{NumericZeroIsMissing: true})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, report.Summary())
}
