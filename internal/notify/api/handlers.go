package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"bus-tracker/internal/notify/domain"
	"bus-tracker/internal/shared/middleware"
	"bus-tracker/internal/shared/util"
)

// Notifier is implemented by *app.Relay.
type Notifier interface {
	Relay(ctx context.Context, ev domain.Event) (domain.Report, error)
	SendDirect(ctx context.Context, req domain.DirectRequest) (domain.Report, error)
}

type Handler struct {
	notifier Notifier
	logger   *util.Logger
}

func NewHandler(notifier Notifier, logger *util.Logger) *Handler {
	return &Handler{notifier: notifier, logger: logger}
}

// TripStartHandler relays a trip-start push. initiatedBy defaults to the caller.
func (h *Handler) TripStartHandler(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.logger.Warn("TripStartHandler", "invalid JSON body: "+err.Error())
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(ev.VehicleID) == "" {
		util.ErrResponseInJson(w, domain.ErrMissingVehicleID)
		return
	}

	if ev.InitiatedBy == "" {
		if id, ok := middleware.IdentityFrom(r.Context()); ok {
			ev.InitiatedBy = id.UID
		}
	}
	ev.CreatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report, err := h.notifier.Relay(ctx, ev)
	if err != nil {
		h.logger.Error("TripStartHandler", "relay failed for "+ev.VehicleID, err)
		util.ErrResponseInJson(w, err)
		return
	}

	util.ResponseInJson(w, http.StatusOK, report)
}

func (h *Handler) DirectHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("DirectHandler", "invalid JSON body: "+err.Error())
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report, err := h.notifier.SendDirect(ctx, req)
	if err != nil {
		h.logger.Error("DirectHandler", "direct notification failed", err)
		util.ErrResponseInJson(w, err)
		return
	}

	util.ResponseInJson(w, http.StatusOK, report)
}
