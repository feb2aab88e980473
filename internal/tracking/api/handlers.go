package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"bus-tracker/internal/progress"
	"bus-tracker/internal/shared/fanout"
	"bus-tracker/internal/shared/geo"
	"bus-tracker/internal/shared/middleware"
	"bus-tracker/internal/shared/util"
	"bus-tracker/internal/tracking/app"
	"bus-tracker/internal/tracking/domain"
	"bus-tracker/internal/tracking/feed"
)

// Sessions is implemented by *app.SessionController.
type Sessions interface {
	StartTracking(ctx context.Context, req app.StartRequest) (domain.TrackingSession, error)
	StopTracking(ctx context.Context, vehicleID string) error
	Ingest(ctx context.Context, raw domain.RawSample) domain.Outcome
}

// Locations is implemented by *store.Store.
type Locations interface {
	Load(ctx context.Context, vehicleID string) (domain.LocationRecord, error)
	Subscribe(vehicleID string) *fanout.Subscription[domain.LocationRecord]
	Snapshot() []domain.LocationRecord
}

// Progress is implemented by *progress.Service.
type Progress interface {
	Current(ctx context.Context, vehicleID string) (progress.Snapshot, error)
	ReplaceStops(ctx context.Context, vehicleID string, stops []progress.RouteStop) error
	Watch(ctx context.Context, vehicleID string) (<-chan progress.Snapshot, error)
}

type Handler struct {
	sessions  Sessions
	locations Locations
	progress  Progress
	auth      *middleware.Authenticator
	logger    *util.Logger
}

func NewHandler(sessions Sessions, locations Locations, prog Progress, auth *middleware.Authenticator, logger *util.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		locations: locations,
		progress:  prog,
		auth:      auth,
		logger:    logger,
	}
}

type startRequest struct {
	DriverLabel  string `json:"driverLabel"`
	ExcludeToken string `json:"excludeToken,omitempty"`
}

type startResponse struct {
	SessionID string    `json:"sessionId"`
	VehicleID string    `json:"vehicleId"`
	StartedAt time.Time `json:"startedAt"`
}

type locationRequest struct {
	SessionID  string     `json:"sessionId"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	Speed      float64    `json:"speed"`
	Heading    float64    `json:"heading"`
	CapturedAt *time.Time `json:"capturedAt,omitempty"`
}

// locationView is the location write record as readers see it.
// CurrentLocation is null whenever the vehicle is not tracking.
type locationView struct {
	VehicleID         string     `json:"vehicleId"`
	CurrentLocation   *geo.Point `json:"currentLocation"`
	Speed             float64    `json:"speed"`
	Heading           float64    `json:"heading"`
	IsTracking        bool       `json:"isTracking"`
	TrackingSessionID string     `json:"trackingSessionId"`
	DriverLabel       string     `json:"driverLabel,omitempty"`
	CapturedAt        *time.Time `json:"capturedAt,omitempty"`
	LastUpdate        time.Time  `json:"lastUpdate"`
}

func toView(rec domain.LocationRecord) locationView {
	v := locationView{
		VehicleID:         rec.VehicleID,
		IsTracking:        rec.IsActive,
		TrackingSessionID: rec.SessionID,
		DriverLabel:       rec.DriverLabel,
		LastUpdate:        rec.UpdatedAt,
	}
	if rec.Visible() {
		p := rec.Sample.Point()
		v.CurrentLocation = &p
		v.Speed = rec.Sample.Speed
		v.Heading = rec.Sample.Heading
		at := rec.Sample.CapturedAt
		v.CapturedAt = &at
	}
	return v
}

func (h *Handler) StartTrackingHandler(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	id, _ := middleware.IdentityFrom(r.Context())
	session, err := h.sessions.StartTracking(r.Context(), app.StartRequest{
		VehicleID:    r.PathValue("vehicle_id"),
		DriverLabel:  req.DriverLabel,
		InitiatedBy:  id.UID,
		ExcludeToken: req.ExcludeToken,
	})
	if err != nil {
		h.logger.Error("StartTrackingHandler", "start failed", err)
		util.ErrResponseInJson(w, err)
		return
	}

	util.ResponseInJson(w, http.StatusCreated, startResponse{
		SessionID: session.SessionID,
		VehicleID: session.VehicleID,
		StartedAt: session.StartedAt,
	})
}

func (h *Handler) StopTrackingHandler(w http.ResponseWriter, r *http.Request) {
	vehicleID := util.NormalizeVehicleID(r.PathValue("vehicle_id"))
	if err := h.sessions.StopTracking(r.Context(), vehicleID); err != nil {
		util.ErrResponseInJson(w, err)
		return
	}

	util.ResponseInJson(w, http.StatusOK, map[string]interface{}{
		"vehicleId":  vehicleID,
		"isTracking": false,
	})
}

// IngestLocationHandler always answers 202 for a well-formed body; the
// outcome tells the device whether the fix was committed.
func (h *Handler) IngestLocationHandler(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	raw := domain.RawSample{
		VehicleID: r.PathValue("vehicle_id"),
		SessionID: req.SessionID,
		Latitude:  math.NaN(),
		Longitude: math.NaN(),
		Speed:     req.Speed,
		Heading:   req.Heading,
	}
	if req.Latitude != nil && req.Longitude != nil {
		raw.Latitude, raw.Longitude = *req.Latitude, *req.Longitude
	}
	if req.CapturedAt != nil {
		raw.CapturedAt = *req.CapturedAt
	}

	outcome := h.sessions.Ingest(r.Context(), raw)
	if outcome != domain.OutcomeAccepted && outcome != domain.OutcomeJitter {
		h.logger.Debug("IngestLocationHandler", string(outcome)+" for "+raw.VehicleID)
	}

	util.ResponseInJson(w, http.StatusAccepted, map[string]domain.Outcome{"outcome": outcome})
}

func (h *Handler) GetLocationHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := h.locations.Load(r.Context(), util.NormalizeVehicleID(r.PathValue("vehicle_id")))
	if err != nil {
		util.ErrResponseInJson(w, err)
		return
	}
	util.ResponseInJson(w, http.StatusOK, toView(rec))
}

func (h *Handler) GetProgressHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.progress.Current(r.Context(), r.PathValue("vehicle_id"))
	if err != nil {
		h.logger.Error("GetProgressHandler", "progress unavailable", err)
		util.ErrResponseInJson(w, err)
		return
	}
	util.ResponseInJson(w, http.StatusOK, snap)
}

type stopsRequest struct {
	Stops []progress.RouteStop `json:"stops"`
}

func (h *Handler) ReplaceStopsHandler(w http.ResponseWriter, r *http.Request) {
	var req stopsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	vehicleID := r.PathValue("vehicle_id")
	if err := h.progress.ReplaceStops(r.Context(), vehicleID, req.Stops); err != nil {
		util.ErrResponseInJson(w, err)
		return
	}

	snap, err := h.progress.Current(r.Context(), vehicleID)
	if err != nil {
		util.ErrResponseInJson(w, err)
		return
	}
	util.ResponseInJson(w, http.StatusOK, snap)
}

// VehiclePositionsHandler serves the GTFS-RT feed; ?format=json returns protojson.
func (h *Handler) VehiclePositionsHandler(w http.ResponseWriter, r *http.Request) {
	msg := feed.Build(h.locations.Snapshot(), time.Now())

	body, contentType, err := feed.Marshal(msg, r.URL.Query().Get("format") == "json")
	if err != nil {
		h.logger.Error("VehiclePositionsHandler", "encode feed", err)
		util.WriteJSONError(w, "failed to encode feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
