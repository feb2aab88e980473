package api

import (
	"net/http"

	"bus-tracker/internal/shared/middleware"
)

// Mount adds the management routes to mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	admin := h.auth.Require(middleware.RoleManagement, middleware.RoleIncharge)

	mux.Handle("GET /admin/overview", admin(http.HandlerFunc(h.GetFleetOverview)))
	mux.Handle("GET /admin/vehicles/active", admin(http.HandlerFunc(h.GetActiveVehicles)))
	mux.Handle("GET /admin/vehicles/{vehicle_id}/sessions", admin(http.HandlerFunc(h.GetSessionHistory)))
}
