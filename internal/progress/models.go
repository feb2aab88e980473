package progress

type StopStatus string

const (
	StatusCompleted StopStatus = "completed"
	StatusCurrent   StopStatus = "current"
	StatusNext      StopStatus = "next"
	StatusUpcoming  StopStatus = "upcoming"
)

// RouteStop is one entry of a vehicle's ordered stop list.
type RouteStop struct {
	ID            string  `json:"id" validate:"notblank"`
	Name          string  `json:"name" validate:"notblank"`
	Latitude      float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude     float64 `json:"longitude" validate:"gte=-180,lte=180"`
	ScheduledTime string  `json:"scheduledTime,omitempty" validate:"omitempty,datetime=15:04"`
}

type StopProgress struct {
	StopID         string     `json:"stopId"`
	Name           string     `json:"name"`
	Status         StopStatus `json:"status"`
	DistanceMeters float64    `json:"distanceMeters"`
	ETALabel       string     `json:"etaLabel"`
}

// Snapshot is the derived progress of one vehicle along its stop list.
// CurrentIndex and NextIndex are -1 when there is no such stop.
type Snapshot struct {
	VehicleID     string         `json:"vehicleId"`
	IsActive      bool           `json:"isActive"`
	CurrentIndex  int            `json:"currentIndex"`
	NextIndex     int            `json:"nextIndex"`
	RouteComplete bool           `json:"routeComplete"`
	Stops         []StopProgress `json:"stops"`
}

// Current returns the stop the vehicle is at, if any.
func (s Snapshot) Current() (StopProgress, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Stops) {
		return StopProgress{}, false
	}
	return s.Stops[s.CurrentIndex], true
}

// Next returns the stop the vehicle is heading to, if any.
func (s Snapshot) Next() (StopProgress, bool) {
	if s.NextIndex < 0 || s.NextIndex >= len(s.Stops) {
		return StopProgress{}, false
	}
	return s.Stops[s.NextIndex], true
}
