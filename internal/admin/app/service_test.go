package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"bus-tracker/internal/admin/repo"
	"bus-tracker/internal/tracking/domain"
)

type stubHistory struct {
	since   time.Time
	vehicle string
	limit   int
	err     error
}

func (s *stubHistory) GetSessionMetrics(_ context.Context, since time.Time) (*repo.SessionMetrics, error) {
	s.since = since
	if s.err != nil {
		return nil, s.err
	}
	return &repo.SessionMetrics{SessionsToday: 4, IdleStoppedToday: 1}, nil
}

func (s *stubHistory) GetRecentSessions(_ context.Context, vehicleID string, limit int) ([]repo.SessionRow, error) {
	s.vehicle, s.limit = vehicleID, limit
	return []repo.SessionRow{{SessionID: "s1", VehicleID: vehicleID}}, s.err
}

type staticFleet []domain.LocationRecord

func (f staticFleet) Snapshot() []domain.LocationRecord { return f }

func fleet() staticFleet {
	return staticFleet{
		{VehicleID: "B-9", IsActive: true, Sample: &domain.LocationSample{Latitude: 1, Longitude: 2, Speed: 4}},
		{VehicleID: "B-1", IsActive: true},
		{VehicleID: "B-5", IsActive: false},
		{VehicleID: "B-3", IsActive: true},
	}
}

func TestGetFleetOverview(t *testing.T) {
	hist := &stubHistory{}
	svc := NewAdminService(hist, fleet())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC) }

	got, err := svc.GetFleetOverview(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveVehicles != 3 || got.IdleVehicles != 1 || got.Sessions.SessionsToday != 4 {
		t.Errorf("overview = %+v", got)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !hist.since.Equal(want) {
		t.Errorf("since = %v, want %v", hist.since, want)
	}

	hist.err = errors.New("db down")
	if _, err := svc.GetFleetOverview(context.Background()); err == nil {
		t.Error("expected repository error")
	}
}

func TestGetActiveVehicles_Pagination(t *testing.T) {
	svc := NewAdminService(&stubHistory{}, fleet())

	page1, _ := svc.GetActiveVehicles(context.Background(), 1, 2)
	if page1.TotalCount != 3 || len(page1.Vehicles) != 2 || page1.Vehicles[0].VehicleID != "B-1" {
		t.Fatalf("page 1 = %+v", page1)
	}

	page2, _ := svc.GetActiveVehicles(context.Background(), 2, 2)
	if len(page2.Vehicles) != 1 || page2.Vehicles[0].VehicleID != "B-9" || page2.Vehicles[0].CurrentLocation == nil {
		t.Fatalf("page 2 = %+v", page2)
	}

	beyond, _ := svc.GetActiveVehicles(context.Background(), 9, 2)
	if len(beyond.Vehicles) != 0 {
		t.Errorf("page 9 = %+v", beyond)
	}

	defaults, _ := svc.GetActiveVehicles(context.Background(), 0, 1000)
	if defaults.Page != 1 || defaults.PageSize != 20 {
		t.Errorf("defaults = %d/%d", defaults.Page, defaults.PageSize)
	}
}

func TestGetSessionHistory(t *testing.T) {
	hist := &stubHistory{}
	svc := NewAdminService(hist, fleet())

	if _, err := svc.GetSessionHistory(context.Background(), " b-12 ", 0); err != nil {
		t.Fatal(err)
	}
	if hist.vehicle != "B-12" || hist.limit != 20 {
		t.Errorf("query = %q limit %d", hist.vehicle, hist.limit)
	}

	if _, err := svc.GetSessionHistory(context.Background(), "", 5); !errors.Is(err, domain.ErrMissingVehicleID) {
		t.Errorf("err = %v", err)
	}
}
