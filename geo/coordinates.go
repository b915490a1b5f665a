// Package geo converts between degrees and the fixed-point integer
// coordinates used on the Moovit wire, and measures distances.
package geo

import (
	"math"
)

// Moovit transmits coordinates as degrees multiplied by this factor.
const ScaleFactor = 1_000_000

type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// ScaledCoordinates is the integer wire representation of Coordinates.
type ScaledCoordinates struct {
	Lat int64 `json:"latitude"`
	Lon int64 `json:"longitude"`
}

// ToScaled converts degrees to the fixed-point wire value. Halves
// round away from zero.
func ToScaled(deg float64) int64 {
	return int64(math.Round(deg * ScaleFactor))
}

func FromScaled(v int64) float64 {
	return float64(v) / ScaleFactor
}

func ToScaledCoordinates(c Coordinates) ScaledCoordinates {
	return ScaledCoordinates{Lat: ToScaled(c.Lat), Lon: ToScaled(c.Lon)}
}

func FromScaledCoordinates(s ScaledCoordinates) Coordinates {
	return Coordinates{Lat: FromScaled(s.Lat), Lon: FromScaled(s.Lon)}
}

// IsValid reports whether c is a finite point within [-90, 90] x
// [-180, 180]. Boundaries are valid.
func IsValid(c Coordinates) bool {
	for _, v := range []float64{c.Lat, c.Lon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
