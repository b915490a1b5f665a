package geo

import (
	"fmt"

	"github.com/twpayne/go-polyline"
)

// DecodePolyline decodes a Google encoded polyline, as attached to
// walk and bike legs, into a list of points.
func DecodePolyline(encoded string) ([]Coordinates, error) {
	if encoded == "" {
		return nil, nil
	}

	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding polyline: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("decoding polyline: %d trailing bytes", len(rest))
	}

	points := make([]Coordinates, 0, len(coords))
	for _, c := range coords {
		points = append(points, Coordinates{Lat: c[0], Lon: c[1]})
	}

	return points, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(points []Coordinates) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}
