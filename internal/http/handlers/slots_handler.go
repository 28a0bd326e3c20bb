package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"parkgate/internal/service"
)

// SlotsHandler exposes the inventory snapshot.
type SlotsHandler struct {
	allocation *service.AllocationService
	logger     *zap.Logger
}

// NewSlotsHandler builds the handler.
func NewSlotsHandler(allocation *service.AllocationService, logger *zap.Logger) *SlotsHandler {
	return &SlotsHandler{allocation: allocation, logger: logger}
}

// HandleSlots handles GET /parking/slots.
func (h *SlotsHandler) HandleSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.allocation.Slots(r.Context())
	if err != nil {
		h.logger.Error("failed to list slots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list slots")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": slots})
}
