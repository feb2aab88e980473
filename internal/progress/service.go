package progress

import (
	"context"
	"fmt"
	"sync"

	"bus-tracker/internal/shared/fanout"
	"bus-tracker/internal/shared/util"
	"bus-tracker/internal/shared/validation"
	"bus-tracker/internal/tracking/domain"
)

// StopRepository stores each vehicle's ordered stop list.
type StopRepository interface {
	ListStops(ctx context.Context, vehicleID string) ([]RouteStop, error)
	ReplaceStops(ctx context.Context, vehicleID string, stops []RouteStop) error
}

// LocationSource is the read side of the LocationStore.
type LocationSource interface {
	Get(vehicleID string) (domain.LocationRecord, bool)
	Subscribe(vehicleID string) *fanout.Subscription[domain.LocationRecord]
}

// Service recomputes progress whenever a vehicle's record or stop list changes.
type Service struct {
	engine    Engine
	repo      StopRepository
	locations LocationSource
	routes    *fanout.Distributor[[]RouteStop]
	loadMu    sync.Mutex
	logger    *util.Logger
}

func NewService(engine Engine, repo StopRepository, locations LocationSource, logger *util.Logger) *Service {
	return &Service{
		engine:    engine,
		repo:      repo,
		locations: locations,
		routes:    fanout.NewDistributor[[]RouteStop](),
		logger:    logger,
	}
}

// Stops returns the vehicle's stop list, loading it once per process.
func (s *Service) Stops(ctx context.Context, vehicleID string) ([]RouteStop, error) {
	vehicleID = util.NormalizeVehicleID(vehicleID)
	if stops, ok := s.routes.Get(vehicleID); ok {
		return stops, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if stops, ok := s.routes.Get(vehicleID); ok {
		return stops, nil
	}
	stops, err := s.repo.ListStops(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("load stops for %s: %w", vehicleID, err)
	}
	s.routes.Publish(vehicleID, stops)
	return stops, nil
}

// ReplaceStops validates and stores a new ordered list; open watchers recompute.
func (s *Service) ReplaceStops(ctx context.Context, vehicleID string, stops []RouteStop) error {
	vehicleID = util.NormalizeVehicleID(vehicleID)
	if vehicleID == "" {
		return domain.ErrMissingVehicleID
	}

	seen := make(map[string]bool, len(stops))
	for i := range stops {
		if err := validation.Struct(stops[i]); err != nil {
			return fmt.Errorf("stop %d: %w", i, err)
		}
		if seen[stops[i].ID] {
			return fmt.Errorf("%w: duplicate stop id %q", ErrInvalidStops, stops[i].ID)
		}
		seen[stops[i].ID] = true
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if err := s.repo.ReplaceStops(ctx, vehicleID, stops); err != nil {
		return fmt.Errorf("save stops for %s: %w", vehicleID, err)
	}

	list := make([]RouteStop, len(stops))
	copy(list, stops)
	s.routes.Publish(vehicleID, list)

	s.logger.Info("ProgressService.ReplaceStops", fmt.Sprintf("vehicle %s now has %d stops", vehicleID, len(list)))
	return nil
}

// Current computes the vehicle's progress from its latest record.
func (s *Service) Current(ctx context.Context, vehicleID string) (Snapshot, error) {
	vehicleID = util.NormalizeVehicleID(vehicleID)
	stops, err := s.Stops(ctx, vehicleID)
	if err != nil {
		return Snapshot{}, err
	}

	var rec *domain.LocationRecord
	if r, ok := s.locations.Get(vehicleID); ok {
		rec = &r
	}
	return s.compute(vehicleID, stops, rec), nil
}

// Watch emits a snapshot right away and after every location or stop list
// change until ctx is done. Slow readers only see the newest snapshot.
func (s *Service) Watch(ctx context.Context, vehicleID string) (<-chan Snapshot, error) {
	vehicleID = util.NormalizeVehicleID(vehicleID)
	stops, err := s.Stops(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	locSub := s.locations.Subscribe(vehicleID)
	routeSub := s.routes.Subscribe(vehicleID)
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)
		defer locSub.Close()
		defer routeSub.Close()

		var rec *domain.LocationRecord
		current := stops
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-locSub.C:
				if !ok {
					return
				}
				rec = &r
			case list, ok := <-routeSub.C:
				if !ok {
					return
				}
				current = list
			}
			fanout.Offer(out, s.compute(vehicleID, current, rec))
		}
	}()

	return out, nil
}

func (s *Service) compute(vehicleID string, stops []RouteStop, rec *domain.LocationRecord) Snapshot {
	var (
		sample *domain.LocationSample
		active bool
	)
	if rec != nil {
		active = rec.IsActive
		if rec.Visible() {
			sample = rec.Sample
		}
	}

	snap := s.engine.Compute(stops, sample, active)
	snap.VehicleID = vehicleID
	return snap
}
