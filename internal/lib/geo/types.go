package geo

import (
	"errors"
	"fmt"
)

// EarthRadiusMeters is the mean Earth radius used for all great-circle math
const EarthRadiusMeters = 6371008.8

// ErrInvalidCoordinate is returned when a latitude or longitude is out of range
var ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// Coordinate is a geographic position. Longitude comes first to match the
// "lon,lat" order used by route sources and GeoJSON.
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Valid reports whether the coordinate is within the WGS84 range
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// String renders the coordinate in the literal "lon,lat" form
func (c Coordinate) String() string {
	return fmt.Sprintf("%g,%g", c.Longitude, c.Latitude)
}

// BoundingBox is an axis-aligned lon/lat rectangle
type BoundingBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

// Contains reports whether c lies inside the box (edges inclusive)
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Longitude >= b.MinLon && c.Longitude <= b.MaxLon &&
		c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat
}
