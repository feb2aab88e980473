package api

import (
	"net/http"

	"bus-tracker/internal/shared/middleware"
)

// RegisterRoutes builds the tracking service router. mounts add routes owned
// by other packages to the same mux.
func (h *Handler) RegisterRoutes(health http.Handler, mounts ...func(*http.ServeMux)) http.Handler {
	mux := http.NewServeMux()

	driver := h.auth.Require(middleware.RoleDriver)
	editors := h.auth.Require(middleware.RoleManagement, middleware.RoleIncharge, middleware.RoleCoadmin)
	anyone := h.auth.Require()

	mux.Handle("POST /vehicles/{vehicle_id}/tracking/start", driver(http.HandlerFunc(h.StartTrackingHandler)))
	mux.Handle("POST /vehicles/{vehicle_id}/tracking/stop", driver(http.HandlerFunc(h.StopTrackingHandler)))
	mux.Handle("POST /vehicles/{vehicle_id}/location", driver(http.HandlerFunc(h.IngestLocationHandler)))

	mux.Handle("GET /vehicles/{vehicle_id}/location", anyone(http.HandlerFunc(h.GetLocationHandler)))
	mux.Handle("GET /vehicles/{vehicle_id}/progress", anyone(http.HandlerFunc(h.GetProgressHandler)))
	mux.Handle("PUT /vehicles/{vehicle_id}/stops", editors(http.HandlerFunc(h.ReplaceStopsHandler)))

	// The websocket authenticates with its first message.
	mux.HandleFunc("GET /ws/vehicles/{vehicle_id}", h.VehicleWSHandler)
	mux.HandleFunc("GET /feeds/vehicle-positions", h.VehiclePositionsHandler)
	mux.Handle("GET /health", health)

	for _, mount := range mounts {
		mount(mux)
	}

	return middleware.RequestID(middleware.Logging(h.logger, mux))
}
