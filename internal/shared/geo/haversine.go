package geo

import "math"

// EarthRadiusMeters is the spherical-Earth radius used for every distance.
const EarthRadiusMeters = 6371000.0

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func toRadians(degree float64) float64 {
	return degree * math.Pi / 180
}

// DistanceMeters is the great-circle distance between a and b.
// Campus-scale approximation, not geodesically exact.
func DistanceMeters(a, b Point) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	deltaPhi := toRadians(b.Latitude - a.Latitude)
	deltaLambda := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Valid reports whether p has finite coordinates within WGS84 bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) ||
		math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}
