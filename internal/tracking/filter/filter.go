// Package filter decides which raw GPS fixes are worth committing.
package filter

import (
	"time"

	"bus-tracker/internal/shared/geo"
	"bus-tracker/internal/tracking/domain"
)

type Decision bool

const (
	Accept Decision = true
	Reject Decision = false
)

const (
	DefaultMinDistanceMeters = 20.0
	DefaultMinInterval       = 4 * time.Second
)

// LocationFilter rejects a candidate only when it is both closer than
// MinDistanceMeters to the previous committed fix and captured less than
// MinInterval after it.
type LocationFilter struct {
	MinDistanceMeters float64
	MinInterval       time.Duration
}

func New(minDistanceMeters float64, minInterval time.Duration) LocationFilter {
	if minDistanceMeters <= 0 {
		minDistanceMeters = DefaultMinDistanceMeters
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return LocationFilter{MinDistanceMeters: minDistanceMeters, MinInterval: minInterval}
}

func Default() LocationFilter {
	return New(DefaultMinDistanceMeters, DefaultMinInterval)
}

// Admit is pure. A nil previous always admits.
func (f LocationFilter) Admit(previous *domain.LocationSample, candidate domain.LocationSample) Decision {
	if previous == nil {
		return Accept
	}

	distance := geo.DistanceMeters(previous.Point(), candidate.Point())
	elapsed := candidate.CapturedAt.Sub(previous.CapturedAt)

	if distance < f.MinDistanceMeters && elapsed < f.MinInterval {
		return Reject
	}
	return Accept
}
