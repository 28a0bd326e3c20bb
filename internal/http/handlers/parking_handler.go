package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"parkgate/internal/parkerr"
	"parkgate/internal/service"
)

// ParkingHandler exposes the entry/exit gate endpoints.
type ParkingHandler struct {
	lifecycle *service.LifecycleService
	logger    *zap.Logger
}

// NewParkingHandler builds the handler set.
func NewParkingHandler(lifecycle *service.LifecycleService, logger *zap.Logger) *ParkingHandler {
	return &ParkingHandler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// HandleEntry handles POST /parking/entry?vehicleNumber=X.
func (h *ParkingHandler) HandleEntry(w http.ResponseWriter, r *http.Request) {
	vehicleNumber := strings.TrimSpace(r.URL.Query().Get("vehicleNumber"))
	if vehicleNumber == "" {
		writeError(w, http.StatusBadRequest, "vehicleNumber is required")
		return
	}

	entryTime, err := h.lifecycle.RecordEntry(r.Context(), vehicleNumber)
	if err != nil {
		h.writeLifecycleError(w, vehicleNumber, "entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicle_number": vehicleNumber,
		"entry_time":     entryTime.Format(time.RFC3339Nano),
	})
}

// HandleExit handles POST /parking/exit?vehicleNumber=X.
func (h *ParkingHandler) HandleExit(w http.ResponseWriter, r *http.Request) {
	vehicleNumber := strings.TrimSpace(r.URL.Query().Get("vehicleNumber"))
	if vehicleNumber == "" {
		writeError(w, http.StatusBadRequest, "vehicleNumber is required")
		return
	}

	exitTime, err := h.lifecycle.RecordExit(r.Context(), vehicleNumber)
	if err != nil {
		h.writeLifecycleError(w, vehicleNumber, "exit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicle_number": vehicleNumber,
		"exit_time":      exitTime.Format(time.RFC3339Nano),
	})
}

// HandleActiveSessions handles GET /sessions/active. With a vehicleNumber
// query param it looks up that vehicle's visit instead of listing.
func (h *ParkingHandler) HandleActiveSessions(w http.ResponseWriter, r *http.Request) {
	if vehicleNumber := strings.TrimSpace(r.URL.Query().Get("vehicleNumber")); vehicleNumber != "" {
		session, err := h.lifecycle.ActiveVisit(r.Context(), vehicleNumber)
		if err != nil {
			h.writeLifecycleError(w, vehicleNumber, "lookup", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
		return
	}

	sessions, err := h.lifecycle.ActiveSessions(r.Context(), 100)
	if err != nil {
		h.logger.Error("failed to list active sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list active sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *ParkingHandler) writeLifecycleError(w http.ResponseWriter, vehicleNumber, op string, err error) {
	switch {
	case errors.Is(err, parkerr.ErrDuplicateActiveSession):
		writeError(w, http.StatusConflict, "vehicle already has an active session")
	case errors.Is(err, parkerr.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, "no active session for vehicle")
	case errors.Is(err, parkerr.ErrContentionTimeout):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "facility busy, retry shortly")
	default:
		h.logger.Error("lifecycle operation failed",
			zap.String("op", op),
			zap.String("vehicle_number", vehicleNumber),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "operation failed")
	}
}
