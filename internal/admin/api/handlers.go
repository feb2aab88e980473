package api

import (
	"net/http"
	"strconv"

	"bus-tracker/internal/admin/app"
	"bus-tracker/internal/shared/middleware"
	"bus-tracker/internal/shared/util"
)

type Handler struct {
	service *app.AdminService
	auth    *middleware.Authenticator
	logger  *util.Logger
}

func NewHandler(service *app.AdminService, auth *middleware.Authenticator, logger *util.Logger) *Handler {
	return &Handler{service: service, auth: auth, logger: logger}
}

func (h *Handler) GetFleetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetFleetOverview(r.Context())
	if err != nil {
		h.logger.Error("GetFleetOverview", "failed to fetch fleet overview", err)
		util.WriteJSONError(w, "failed to fetch fleet overview", http.StatusInternalServerError)
		return
	}

	util.ResponseInJson(w, http.StatusOK, overview)
}

func (h *Handler) GetActiveVehicles(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)

	response, err := h.service.GetActiveVehicles(r.Context(), page, pageSize)
	if err != nil {
		util.ErrResponseInJson(w, err)
		return
	}

	util.ResponseInJson(w, http.StatusOK, response)
}

func (h *Handler) GetSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.GetSessionHistory(r.Context(), r.PathValue("vehicle_id"), queryInt(r, "limit", 20))
	if err != nil {
		h.logger.Error("GetSessionHistory", "failed to fetch sessions", err)
		util.ErrResponseInJson(w, err)
		return
	}

	util.ResponseInJson(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
