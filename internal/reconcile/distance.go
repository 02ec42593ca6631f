package reconcile

import (
	"fmt"
	"math"

	"peoplemeet-client/internal/models"
)

// EarthRadius is the equatorial radius in metres.
const EarthRadius = 6378137.0

// Distance is the haversine great-circle distance in metres.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// FormatDistance renders metres as "N m" below one kilometre and "N.N km" above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// DistanceBetween formats the distance between two located profiles. ok is
// false when either location is unknown.
func DistanceBetween(a, b models.Profile) (label string, ok bool) {
	if !a.HasLocation() || !b.HasLocation() {
		return "", false
	}
	return FormatDistance(Distance(a.Lat.Value, a.Lng.Value, b.Lat.Value, b.Lng.Value)), true
}
