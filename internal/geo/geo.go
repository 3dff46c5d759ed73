// Package geo provides the small amount of spherical geometry the simulator
// and the location predicates need. Linear interpolation in lat/lon space is
// an acceptable approximation at route scale.
package geo

import (
	"math"

	"fleet-monitor/simulation/internal/domain"
)

const earthRadiusMeters = 6371000

// DistanceMeters returns the haversine great-circle distance between two
// coordinates given in degrees. Accurate at the sub-kilometer scale the
// geofence and deviation thresholds operate on.
func DistanceMeters(a, b domain.Location) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Interpolate returns the point at fraction t along the segment from a to b.
// t is clamped to [0, 1].
func Interpolate(a, b domain.Location, t float64) domain.Location {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return domain.Location{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
}

// BearingDegrees returns the initial bearing from a to b normalized to
// [0, 360). Identical points have no defined bearing and yield 0.
func BearingDegrees(a, b domain.Location) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
