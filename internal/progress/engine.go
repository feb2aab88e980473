// Package progress derives which stop a vehicle is at or heading to, and when
// it will arrive, from its latest committed position.
package progress

import (
	"fmt"
	"math"

	"bus-tracker/internal/shared/geo"
	"bus-tracker/internal/tracking/domain"
)

const (
	// DefaultArrivalRadiusMeters is deliberately wider than the jitter
	// threshold so a bus idling near a stop does not flicker between
	// current and next.
	DefaultArrivalRadiusMeters = 140.0

	// MovingSpeed is the speed (m/s) at or below which no ETA is given.
	MovingSpeed = 0.5
	minETASpeed = 0.1
)

const (
	LabelAwaitingMovement = "Awaiting movement"
	LabelArrivingNow      = "Arriving now"
	LabelAtStop           = "At stop"
	LabelDeparted         = "Departed"
)

// Engine is a greedy nearest-stop classifier. It is not route-aware: on a
// route that loops back near itself it can pick the wrong pass of a stop.
type Engine struct {
	ArrivalRadiusMeters float64
}

func NewEngine(arrivalRadiusMeters float64) Engine {
	if arrivalRadiusMeters <= 0 {
		arrivalRadiusMeters = DefaultArrivalRadiusMeters
	}
	return Engine{ArrivalRadiusMeters: arrivalRadiusMeters}
}

// IsAtStop reports whether a vehicle this far from its nearest stop counts as arrived.
func (e Engine) IsAtStop(distanceMeters float64) bool {
	return distanceMeters <= e.ArrivalRadiusMeters
}

// Compute is pure and keeps no state between calls.
func (e Engine) Compute(stops []RouteStop, sample *domain.LocationSample, active bool) Snapshot {
	snap := Snapshot{
		IsActive:     active,
		CurrentIndex: -1,
		NextIndex:    -1,
		Stops:        make([]StopProgress, len(stops)),
	}
	if sample != nil {
		snap.VehicleID = sample.VehicleID
	}

	if !active || sample == nil {
		for i, stop := range stops {
			status := StatusUpcoming
			if i == 0 {
				status = StatusNext
				snap.NextIndex = 0
			}
			snap.Stops[i] = StopProgress{
				StopID:   stop.ID,
				Name:     stop.Name,
				Status:   status,
				ETALabel: scheduledLabel(stop),
			}
		}
		return snap
	}

	if len(stops) == 0 {
		return snap
	}

	here := sample.Point()
	distances := make([]float64, len(stops))
	nearest := 0
	for i, stop := range stops {
		distances[i] = geo.DistanceMeters(here, geo.Point{Latitude: stop.Latitude, Longitude: stop.Longitude})
		if distances[i] < distances[nearest] {
			nearest = i
		}
	}

	if e.IsAtStop(distances[nearest]) {
		snap.CurrentIndex = nearest
		if nearest+1 < len(stops) {
			snap.NextIndex = nearest + 1
		}
	} else {
		snap.NextIndex = nearest
	}

	for i, stop := range stops {
		p := StopProgress{
			StopID:         stop.ID,
			Name:           stop.Name,
			DistanceMeters: distances[i],
		}
		switch {
		case i == snap.CurrentIndex:
			p.Status = StatusCurrent
			p.ETALabel = LabelAtStop
		case i == snap.NextIndex:
			p.Status = StatusNext
			p.ETALabel = ETALabel(distances[i], sample.Speed)
		case i < nearest:
			p.Status = StatusCompleted
			p.ETALabel = departedLabel(stop)
		default:
			p.Status = StatusUpcoming
			p.ETALabel = scheduledLabel(stop)
		}
		snap.Stops[i] = p
	}

	snap.RouteComplete = snap.NextIndex == -1 && snap.CurrentIndex == len(stops)-1
	return snap
}

// ETAMinutes is the whole-minute travel time, never less than one.
func ETAMinutes(distanceMeters, speed float64) int {
	minutes := int(math.Round(distanceMeters / math.Max(speed, minETASpeed) / 60))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// ETALabel is the arrival text for the next stop.
func ETALabel(distanceMeters, speed float64) string {
	if speed <= MovingSpeed {
		return LabelAwaitingMovement
	}
	minutes := ETAMinutes(distanceMeters, speed)
	if minutes <= 1 {
		return LabelArrivingNow
	}
	return fmt.Sprintf("Arriving in %d min", minutes)
}

func departedLabel(stop RouteStop) string {
	if stop.ScheduledTime == "" {
		return LabelDeparted
	}
	return fmt.Sprintf("%s (scheduled %s)", LabelDeparted, stop.ScheduledTime)
}

func scheduledLabel(stop RouteStop) string {
	if stop.ScheduledTime == "" {
		return ""
	}
	return "Scheduled " + stop.ScheduledTime
}
