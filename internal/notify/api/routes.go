package api

import (
	"net/http"

	"bus-tracker/internal/shared/middleware"
)

func (h *Handler) RegisterRoutes(auth *middleware.Authenticator, health http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /notifications/trip-start", auth.Require(
		middleware.RoleDriver, middleware.RoleManagement, middleware.RoleIncharge, middleware.RoleCoadmin,
	)(http.HandlerFunc(h.TripStartHandler)))
	mux.Handle("POST /notifications/direct", auth.Require(
		middleware.RoleManagement, middleware.RoleIncharge, middleware.RoleCoadmin,
	)(http.HandlerFunc(h.DirectHandler)))
	mux.Handle("GET /health", health)

	return middleware.RequestID(middleware.Logging(h.logger, mux))
}
