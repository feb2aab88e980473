package domain

import "context"

// LocationStore holds one record per vehicle. Writes are last-write-wins.
type LocationStore interface {
	Put(ctx context.Context, rec LocationRecord)
	Get(vehicleID string) (LocationRecord, bool)
}

// SessionRepository keeps the history of tracking sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, s TrackingSession) error
	EndSession(ctx context.Context, sessionID string, reason string) error
}

// LocationRepository persists the per-vehicle location write record.
type LocationRepository interface {
	UpsertLocation(ctx context.Context, rec LocationRecord) error
	GetLocation(ctx context.Context, vehicleID string) (*LocationRecord, error)
	// ReleaseTracking clears every record still flagged as tracking and
	// closes open sessions with reason.
	ReleaseTracking(ctx context.Context, reason string) (int64, error)
}

// Broker publishes tracking events to other services.
type Broker interface {
	Publish(ctx context.Context, exchange, routingKey string, data interface{}) error
}
