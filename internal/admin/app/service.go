package app

import (
	"context"
	"sort"
	"time"

	"bus-tracker/internal/admin/repo"
	"bus-tracker/internal/shared/geo"
	"bus-tracker/internal/shared/util"
	"bus-tracker/internal/tracking/domain"
)

type SessionHistory interface {
	GetSessionMetrics(ctx context.Context, since time.Time) (*repo.SessionMetrics, error)
	GetRecentSessions(ctx context.Context, vehicleID string, limit int) ([]repo.SessionRow, error)
}

// Fleet is implemented by *store.Store.
type Fleet interface {
	Snapshot() []domain.LocationRecord
}

type AdminService struct {
	repo  SessionHistory
	fleet Fleet
	now   func() time.Time
}

func NewAdminService(repo SessionHistory, fleet Fleet) *AdminService {
	return &AdminService{repo: repo, fleet: fleet, now: time.Now}
}

type OverviewResponse struct {
	Timestamp      string               `json:"timestamp"`
	ActiveVehicles int                  `json:"active_vehicles"`
	IdleVehicles   int                  `json:"idle_vehicles"`
	Sessions       *repo.SessionMetrics `json:"sessions"`
}

type ActiveVehicle struct {
	VehicleID       string     `json:"vehicle_id"`
	SessionID       string     `json:"session_id"`
	DriverLabel     string     `json:"driver_label"`
	CurrentLocation *geo.Point `json:"current_location"`
	SpeedMPS        float64    `json:"speed_mps"`
	LastUpdate      time.Time  `json:"last_update"`
}

type ActiveVehiclesResponse struct {
	Vehicles   []ActiveVehicle `json:"vehicles"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

func (s *AdminService) GetFleetOverview(ctx context.Context) (*OverviewResponse, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	metrics, err := s.repo.GetSessionMetrics(ctx, midnight)
	if err != nil {
		return nil, err
	}

	overview := &OverviewResponse{
		Timestamp: now.Format(time.RFC3339),
		Sessions:  metrics,
	}
	for _, rec := range s.fleet.Snapshot() {
		if rec.IsActive {
			overview.ActiveVehicles++
		} else {
			overview.IdleVehicles++
		}
	}
	return overview, nil
}

// GetActiveVehicles pages through tracking vehicles ordered by id.
func (s *AdminService) GetActiveVehicles(ctx context.Context, page, pageSize int) (*ActiveVehiclesResponse, error) {
	// Set defaults
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var active []ActiveVehicle
	for _, rec := range s.fleet.Snapshot() {
		if !rec.IsActive {
			continue
		}
		v := ActiveVehicle{
			VehicleID:   rec.VehicleID,
			SessionID:   rec.SessionID,
			DriverLabel: rec.DriverLabel,
			LastUpdate:  rec.UpdatedAt,
		}
		if rec.Visible() {
			p := rec.Sample.Point()
			v.CurrentLocation = &p
			v.SpeedMPS = rec.Sample.Speed
		}
		active = append(active, v)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].VehicleID < active[j].VehicleID })

	start := (page - 1) * pageSize
	if start > len(active) {
		start = len(active)
	}
	end := start + pageSize
	if end > len(active) {
		end = len(active)
	}

	return &ActiveVehiclesResponse{
		Vehicles:   append([]ActiveVehicle{}, active[start:end]...),
		TotalCount: len(active),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func (s *AdminService) GetSessionHistory(ctx context.Context, vehicleID string, limit int) ([]repo.SessionRow, error) {
	vehicleID = util.NormalizeVehicleID(vehicleID)
	if vehicleID == "" {
		return nil, domain.ErrMissingVehicleID
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.GetRecentSessions(ctx, vehicleID, limit)
}
