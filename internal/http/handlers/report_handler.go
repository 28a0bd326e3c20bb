package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"parkgate/internal/service"
)

// ReportHandler exposes the billing summary.
type ReportHandler struct {
	billing *service.BillingService
	logger  *zap.Logger
}

// NewReportHandler builds the handler.
func NewReportHandler(billing *service.BillingService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{billing: billing, logger: logger}
}

// HandleInvoiceSummary handles GET /reporting/invoices.
func (h *ReportHandler) HandleInvoiceSummary(w http.ResponseWriter, r *http.Request) {
	total, err := h.billing.TotalBilled(r.Context())
	if err != nil {
		h.logger.Error("failed to compute invoice summary", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute invoice summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"total_amount": total})
}
