package geo

import (
	"math"
)

// Mean earth radius used by Distance.
const EarthRadiusMeters = 6371000

// Distance returns the great-circle distance in meters between a and
// b, using the haversine formula.
func Distance(a, b Coordinates) float64 {
	aLatRad := a.Lat * math.Pi / 180
	aLonRad := a.Lon * math.Pi / 180
	bLatRad := b.Lat * math.Pi / 180
	bLonRad := b.Lon * math.Pi / 180
	deltaLat := aLatRad - bLatRad
	deltaLon := aLonRad - bLonRad

	h := math.Cos(aLatRad)*math.Cos(bLatRad)*math.Pow(math.Sin(deltaLon/2), 2) + math.Pow(math.Sin(deltaLat/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return c * EarthRadiusMeters
}
