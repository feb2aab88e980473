package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"bus-tracker/internal/shared/geo"
	"bus-tracker/internal/shared/mq"
	"bus-tracker/internal/shared/util"
	"bus-tracker/internal/tracking/domain"
	"bus-tracker/internal/tracking/filter"
)

type vehicleState struct {
	mu       sync.Mutex
	session  domain.TrackingSession
	last     *domain.LocationSample
	lastSeen time.Time
}

// SessionController owns the Idle -> Active -> Idle lifecycle of every
// vehicle and is the only writer of the LocationStore.
type SessionController struct {
	mu       sync.Mutex
	vehicles map[string]*vehicleState

	store       domain.LocationStore
	sessions    domain.SessionRepository
	broker      domain.Broker
	filter      filter.LocationFilter
	idleTimeout time.Duration
	logger      *util.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*SessionController)

func WithSessionRepository(repo domain.SessionRepository) Option {
	return func(c *SessionController) { c.sessions = repo }
}

func WithBroker(broker domain.Broker) Option {
	return func(c *SessionController) { c.broker = broker }
}

func WithFilter(f filter.LocationFilter) Option {
	return func(c *SessionController) { c.filter = f }
}

// WithIdleTimeout enables ReapIdle. Zero leaves sessions open until stopped.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *SessionController) { c.idleTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *SessionController) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *SessionController) { c.newID = newID }
}

func NewSessionController(store domain.LocationStore, logger *util.Logger, opts ...Option) *SessionController {
	c := &SessionController{
		vehicles: make(map[string]*vehicleState),
		store:    store,
		filter:   filter.Default(),
		logger:   logger,
		now:      time.Now,
		newID:    util.GenerateUUID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type StartRequest struct {
	VehicleID    string
	DriverLabel  string
	InitiatedBy  string
	ExcludeToken string
}

// StartTracking always opens a fresh session, even if one is active, so that
// samples still in flight from the previous session are dropped as stale.
func (c *SessionController) StartTracking(ctx context.Context, req StartRequest) (domain.TrackingSession, error) {
	instance := "SessionController.StartTracking"

	vehicleID := util.NormalizeVehicleID(req.VehicleID)
	if vehicleID == "" {
		return domain.TrackingSession{}, domain.ErrMissingVehicleID
	}

	st := c.state(vehicleID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.session.IsActive {
		c.logger.Warn(instance, fmt.Sprintf("vehicle %s restarted while session %s active", vehicleID, st.session.SessionID))
		c.endSession(ctx, st.session.SessionID, domain.StopReasonRestarted)
	}

	now := c.now()
	st.session = domain.TrackingSession{
		VehicleID:   vehicleID,
		SessionID:   c.newID(),
		IsActive:    true,
		StartedAt:   now,
		DriverLabel: req.DriverLabel,
	}
	st.last = nil
	st.lastSeen = now

	c.store.Put(ctx, domain.LocationRecord{
		VehicleID:   vehicleID,
		SessionID:   st.session.SessionID,
		IsActive:    true,
		DriverLabel: req.DriverLabel,
		UpdatedAt:   now,
	})

	if c.sessions != nil {
		if err := c.sessions.CreateSession(ctx, st.session); err != nil {
			c.logger.Error(instance, "failed to record session", err)
		}
	}

	if c.broker != nil {
		event := domain.TripStartedEvent{
			VehicleID:    vehicleID,
			SessionID:    st.session.SessionID,
			DriverLabel:  req.DriverLabel,
			InitiatedBy:  req.InitiatedBy,
			ExcludeToken: req.ExcludeToken,
			StartedAt:    now,
		}
		if err := c.broker.Publish(ctx, mq.TrackingExchange, mq.RoutingTrackingStarted, event); err != nil {
			c.logger.Error(instance, "failed to publish trip start", err)
		}
	}

	c.logger.OK(instance, fmt.Sprintf("vehicle %s tracking, session %s", vehicleID, st.session.SessionID))
	return st.session, nil
}

// StopTracking is a no-op for a vehicle that is already idle.
func (c *SessionController) StopTracking(ctx context.Context, vehicleID string) error {
	vehicleID = util.NormalizeVehicleID(vehicleID)
	if vehicleID == "" {
		return domain.ErrMissingVehicleID
	}

	c.mu.Lock()
	st, ok := c.vehicles[vehicleID]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	c.stopLocked(ctx, st, domain.StopReasonRequested)
	return nil
}

// Ingest runs one raw fix through validation, the session guard and the
// admission filter. Nothing but OutcomeAccepted reaches the store.
func (c *SessionController) Ingest(ctx context.Context, raw domain.RawSample) domain.Outcome {
	vehicleID := util.NormalizeVehicleID(raw.VehicleID)

	point := geo.Point{Latitude: raw.Latitude, Longitude: raw.Longitude}
	if vehicleID == "" || !point.Valid() || !finite(raw.Speed) || !finite(raw.Heading) {
		return domain.OutcomeMalformed
	}

	c.mu.Lock()
	st, ok := c.vehicles[vehicleID]
	c.mu.Unlock()
	if !ok {
		return domain.OutcomeInactive
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.session.IsActive {
		return domain.OutcomeInactive
	}
	if raw.SessionID != st.session.SessionID {
		return domain.OutcomeStaleSession
	}

	now := c.now()
	st.lastSeen = now

	capturedAt := raw.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = now
	}

	candidate := domain.LocationSample{
		VehicleID:  vehicleID,
		Latitude:   raw.Latitude,
		Longitude:  raw.Longitude,
		Speed:      math.Max(raw.Speed, 0),
		Heading:    normalizeHeading(raw.Heading),
		CapturedAt: capturedAt,
	}

	if c.filter.Admit(st.last, candidate) == filter.Reject {
		return domain.OutcomeJitter
	}

	st.last = &candidate
	sample := candidate
	c.store.Put(ctx, domain.LocationRecord{
		VehicleID:   vehicleID,
		SessionID:   st.session.SessionID,
		IsActive:    true,
		DriverLabel: st.session.DriverLabel,
		Sample:      &sample,
		UpdatedAt:   now,
	})
	return domain.OutcomeAccepted
}

// Session returns the vehicle's current or last session.
func (c *SessionController) Session(vehicleID string) (domain.TrackingSession, bool) {
	c.mu.Lock()
	st, ok := c.vehicles[util.NormalizeVehicleID(vehicleID)]
	c.mu.Unlock()
	if !ok {
		return domain.TrackingSession{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session, true
}

// ReapIdle stops every active session that has not ingested a sample for the
// configured idle timeout and returns the vehicles it stopped.
func (c *SessionController) ReapIdle(ctx context.Context) []string {
	if c.idleTimeout <= 0 {
		return nil
	}

	c.mu.Lock()
	states := make([]*vehicleState, 0, len(c.vehicles))
	for _, st := range c.vehicles {
		states = append(states, st)
	}
	c.mu.Unlock()

	now := c.now()
	var reaped []string
	for _, st := range states {
		st.mu.Lock()
		if st.session.IsActive && now.Sub(st.lastSeen) >= c.idleTimeout {
			c.logger.Warn("SessionController.ReapIdle",
				fmt.Sprintf("vehicle %s idle for %v, stopping session %s", st.session.VehicleID, now.Sub(st.lastSeen).Round(time.Second), st.session.SessionID))
			c.stopLocked(ctx, st, domain.StopReasonIdle)
			reaped = append(reaped, st.session.VehicleID)
		}
		st.mu.Unlock()
	}
	return reaped
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (c *SessionController) RunReaper(ctx context.Context, interval time.Duration) {
	if c.idleTimeout <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ReapIdle(ctx)
		}
	}
}

func (c *SessionController) state(vehicleID string) *vehicleState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.vehicles[vehicleID]
	if !ok {
		st = &vehicleState{}
		c.vehicles[vehicleID] = st
	}
	return st
}

// stopLocked expects st.mu to be held.
func (c *SessionController) stopLocked(ctx context.Context, st *vehicleState, reason string) {
	if !st.session.IsActive {
		return
	}

	now := c.now()
	st.session.IsActive = false
	st.session.EndedAt = &now
	st.last = nil

	c.store.Put(ctx, domain.LocationRecord{
		VehicleID: st.session.VehicleID,
		SessionID: st.session.SessionID,
		IsActive:  false,
		UpdatedAt: now,
	})

	c.endSession(ctx, st.session.SessionID, reason)

	if c.broker != nil {
		event := domain.TrackingStoppedEvent{
			VehicleID: st.session.VehicleID,
			SessionID: st.session.SessionID,
			Reason:    reason,
			StoppedAt: now,
		}
		if err := c.broker.Publish(ctx, mq.TrackingExchange, mq.RoutingTrackingStopped, event); err != nil {
			c.logger.Error("SessionController.StopTracking", "failed to publish tracking stop", err)
		}
	}

	c.logger.Info("SessionController.StopTracking", fmt.Sprintf("vehicle %s stopped (%s)", st.session.VehicleID, reason))
}

func (c *SessionController) endSession(ctx context.Context, sessionID, reason string) {
	if c.sessions == nil {
		return
	}
	if err := c.sessions.EndSession(ctx, sessionID, reason); err != nil {
		c.logger.Error("SessionController", fmt.Sprintf("failed to close session %s", sessionID), err)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func normalizeHeading(h float64) float64 {
	if h < 0 {
		return 0
	}
	return math.Mod(h, 360)
}
