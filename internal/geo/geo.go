// Package geo contains the pure geometry helpers shared by the spatial
// search layer: WGS84 coordinate validation, great-circle distance,
// heatmap grid sizing and polygon ring handling.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	earthRadiusKm = 6371.0

	// kmPerDegree approximates one degree of latitude in kilometres and is
	// used to derive heatmap cell sizes from a grid size given in km.
	kmPerDegree = 111.0
)

var (
	// ErrInvalidLatitude is returned when a latitude is outside [-90, 90].
	ErrInvalidLatitude = errors.New("invalid latitude: must be between -90 and 90")

	// ErrInvalidLongitude is returned when a longitude is outside [-180, 180].
	ErrInvalidLongitude = errors.New("invalid longitude: must be between -180 and 180")

	// ErrRingNotClosed is returned when a polygon ring does not repeat its
	// first vertex as the last one.
	ErrRingNotClosed = errors.New("polygon ring must be closed: first vertex repeated as last")

	// ErrRingTooSmall is returned when a closed ring has fewer than four
	// vertices and therefore cannot describe an area.
	ErrRingTooSmall = errors.New("polygon ring needs at least four vertices")
)

// ValidateCoordinates checks that a point lies within WGS84 bounds.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// Haversine returns the great-circle distance in kilometres between two
// WGS84 points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// CellSizeDeg converts a heatmap grid size in kilometres to the degree size
// of one grid cell.  Bucket boundaries are floor(lat/cell), floor(lon/cell),
// so two runs over the same input always produce identical buckets.
func CellSizeDeg(gridKm float64) float64 {
	return gridKm / kmPerDegree
}

// PolygonWKT validates a closed ring of (lon, lat) vertices and renders it
// as a POLYGON WKT string for use as a bound query parameter.  The output is
// rebuilt from parsed floats, so no caller-supplied text reaches the query.
func PolygonWKT(vertices [][2]float64) (string, error) {
	if len(vertices) < 4 {
		return "", ErrRingTooSmall
	}
	if vertices[0] != vertices[len(vertices)-1] {
		return "", ErrRingNotClosed
	}
	for _, v := range vertices {
		if err := ValidateCoordinates(v[1], v[0]); err != nil {
			return "", err
		}
	}
	parts := make([]string, 0, len(vertices))
	for _, v := range vertices {
		parts = append(parts,
			strconv.FormatFloat(v[0], 'f', -1, 64)+" "+strconv.FormatFloat(v[1], 'f', -1, 64))
	}
	return "POLYGON((" + strings.Join(parts, ", ") + "))", nil
}
