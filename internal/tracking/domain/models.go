package domain

import (
	"time"

	"bus-tracker/internal/shared/geo"
)

// RawSample is a GPS fix as received from the driver device, tagged with the
// session it was captured in.
type RawSample struct {
	VehicleID  string
	SessionID  string
	Latitude   float64
	Longitude  float64
	Speed      float64 // m/s
	Heading    float64 // degrees
	CapturedAt time.Time
}

// LocationSample is a committed fix. Only the latest one per vehicle is kept.
type LocationSample struct {
	VehicleID  string    `json:"vehicleId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      float64   `json:"speed"`
	Heading    float64   `json:"heading"`
	CapturedAt time.Time `json:"capturedAt"`
}

func (s LocationSample) Point() geo.Point {
	return geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
}

type TrackingSession struct {
	VehicleID   string     `json:"vehicleId"`
	SessionID   string     `json:"sessionId"`
	IsActive    bool       `json:"isActive"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	DriverLabel string     `json:"driverLabel"`
}

// LocationRecord is the single current record of a vehicle as seen by readers.
// Sample is nil right after a start and after a stop.
type LocationRecord struct {
	VehicleID   string          `json:"vehicleId"`
	SessionID   string          `json:"sessionId"`
	IsActive    bool            `json:"isActive"`
	DriverLabel string          `json:"driverLabel,omitempty"`
	Sample      *LocationSample `json:"sample,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Visible reports whether the record carries a position readers may show.
func (r LocationRecord) Visible() bool {
	return r.IsActive && r.Sample != nil
}

// TripStartedEvent is published when a session starts; the notification
// service turns it into a push to the vehicle's audience.
type TripStartedEvent struct {
	VehicleID    string    `json:"vehicleId"`
	SessionID    string    `json:"sessionId"`
	DriverLabel  string    `json:"driverLabel"`
	InitiatedBy  string    `json:"initiatedBy,omitempty"`
	ExcludeToken string    `json:"excludeToken,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
}

type TrackingStoppedEvent struct {
	VehicleID string    `json:"vehicleId"`
	SessionID string    `json:"sessionId"`
	Reason    string    `json:"reason"`
	StoppedAt time.Time `json:"stoppedAt"`
}

// Outcome is the result of ingesting one raw sample. Only Accepted commits.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeJitter       Outcome = "rejected_jitter"
	OutcomeInactive     Outcome = "dropped_inactive"
	OutcomeStaleSession Outcome = "dropped_stale_session"
	OutcomeMalformed    Outcome = "dropped_malformed"
)

const (
	StopReasonRequested = "requested"
	StopReasonIdle      = "idle_timeout"
	StopReasonRestarted = "restarted"
)
