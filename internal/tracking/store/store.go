package store

import (
	"context"
	"fmt"

	"bus-tracker/internal/shared/fanout"
	"bus-tracker/internal/shared/mq"
	"bus-tracker/internal/shared/util"
	"bus-tracker/internal/tracking/domain"
)

// Store is the in-process LocationStore. Every Put replaces the vehicle's
// record, fans it out to subscribers, and writes it through to the
// persistent record and the location exchange when those are configured.
type Store struct {
	records *fanout.Distributor[domain.LocationRecord]
	repo    domain.LocationRepository
	broker  domain.Broker
	logger  *util.Logger
}

type Option func(*Store)

func WithRepository(repo domain.LocationRepository) Option {
	return func(s *Store) { s.repo = repo }
}

func WithBroker(broker domain.Broker) Option {
	return func(s *Store) { s.broker = broker }
}

func New(logger *util.Logger, opts ...Option) *Store {
	s := &Store{
		records: fanout.NewDistributor[domain.LocationRecord](),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put never fails the caller: the in-memory record is authoritative for live
// readers, write-through errors are logged.
func (s *Store) Put(ctx context.Context, rec domain.LocationRecord) {
	s.records.Publish(rec.VehicleID, rec)

	if s.repo != nil {
		if err := s.repo.UpsertLocation(ctx, rec); err != nil {
			s.logger.Error("LocationStore.Put", fmt.Sprintf("persist record for %s", rec.VehicleID), err)
		}
	}

	if s.broker != nil {
		if err := s.broker.Publish(ctx, mq.LocationExchange, "", rec); err != nil {
			s.logger.Warn("LocationStore.Put", fmt.Sprintf("publish record for %s: %v", rec.VehicleID, err))
		}
	}
}

func (s *Store) Get(vehicleID string) (domain.LocationRecord, bool) {
	return s.records.Get(vehicleID)
}

// Load returns the live record, falling back to the persisted one for
// vehicles this process has not seen since it started. No session in this
// process owns such a vehicle, so the persisted record is never live.
func (s *Store) Load(ctx context.Context, vehicleID string) (domain.LocationRecord, error) {
	if rec, ok := s.records.Get(vehicleID); ok {
		return rec, nil
	}
	if s.repo == nil {
		return domain.LocationRecord{}, domain.ErrVehicleNotFound
	}

	rec, err := s.repo.GetLocation(ctx, vehicleID)
	if err != nil {
		return domain.LocationRecord{}, err
	}
	if rec == nil {
		return domain.LocationRecord{}, domain.ErrVehicleNotFound
	}
	rec.IsActive = false
	rec.Sample = nil
	return *rec, nil
}

// ReleaseOrphaned marks every persisted record still flagged as tracking as
// idle. Run at startup, before any session is started, since a fresh process
// owns no sessions.
func (s *Store) ReleaseOrphaned(ctx context.Context) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	n, err := s.repo.ReleaseTracking(ctx, domain.StopReasonRestarted)
	if err != nil {
		return 0, fmt.Errorf("release orphaned tracking records: %w", err)
	}
	if n > 0 {
		s.logger.Warn("LocationStore.ReleaseOrphaned", fmt.Sprintf("marked %d vehicle(s) idle after restart", n))
	}
	return n, nil
}

// Subscribe delivers the current record immediately, then every change.
func (s *Store) Subscribe(vehicleID string) *fanout.Subscription[domain.LocationRecord] {
	return s.records.Subscribe(vehicleID)
}

// Snapshot returns every vehicle's current record.
func (s *Store) Snapshot() []domain.LocationRecord {
	all := s.records.Snapshot()
	out := make([]domain.LocationRecord, 0, len(all))
	for _, rec := range all {
		out = append(out, rec)
	}
	return out
}
