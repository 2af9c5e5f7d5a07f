package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-polyline"
)

// NewCoordinate creates a Coordinate from longitude and latitude values with validation
func NewCoordinate(longitude, latitude float64) (Coordinate, error) {
	c := Coordinate{Longitude: longitude, Latitude: latitude}
	if !c.Valid() {
		return Coordinate{}, ErrInvalidCoordinate
	}
	return c, nil
}

// ParseCoordinate parses the literal "<longitude>,<latitude>" form.
// The second return value is false when the text is not shaped like a
// coordinate pair at all; a pair that parses but is out of range returns
// ok=true with ErrInvalidCoordinate.
func ParseCoordinate(text string) (c Coordinate, ok bool, err error) {
	parts := strings.Split(strings.TrimSpace(text), ",")
	if len(parts) != 2 {
		return Coordinate{}, false, nil
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, false, nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, false, nil
	}

	c, err = NewCoordinate(lon, lat)
	return c, true, err
}

// Haversine calculates great-circle distance between two coordinates in meters
func Haversine(a, b Coordinate) (float64, error) {
	if !a.Valid() || !b.Valid() {
		return 0, ErrInvalidCoordinate
	}
	return haversine(a, b), nil
}

// haversine is the unchecked form used on already-validated coordinates
func haversine(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dlat := lat2 - lat1
	dlon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	// Rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, h)

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// PointToSegment returns the distance in meters from p to the segment a→b.
//
// The segment is treated as planar in an equirectangular projection centred
// on its midpoint latitude. The projection parameter is clamped to [0,1] so
// the nearest point always lies on the segment, and the final distance is the
// haversine distance to that nearest point. Only suitable for short segments.
func PointToSegment(p, a, b Coordinate) float64 {
	if a == b {
		return haversine(p, a)
	}

	scale := math.Cos(toRadians((a.Latitude + b.Latitude) / 2))

	dx := (b.Longitude - a.Longitude) * scale
	dy := b.Latitude - a.Latitude
	px := (p.Longitude - a.Longitude) * scale
	py := p.Latitude - a.Latitude

	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		// Segment collapses at the poles where scale is zero
		return math.Min(haversine(p, a), haversine(p, b))
	}

	t := (px*dx + py*dy) / lengthSq
	t = math.Max(0, math.Min(1, t))

	return haversine(p, Interpolate(a, b, t))
}

// PointToPolyline calculates minimum distance from point to the polyline
// described by points. A two-point polyline is a single segment.
func PointToPolyline(point Coordinate, points []Coordinate) (float64, error) {
	if !point.Valid() {
		return 0, fmt.Errorf("invalid point: %w", ErrInvalidCoordinate)
	}

	if len(points) == 0 {
		return 0, errors.New("polyline has no points")
	}

	if len(points) == 1 {
		return Haversine(point, points[0])
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(points)-1; i++ {
		distance := PointToSegment(point, points[i], points[i+1])
		if distance < minDistance {
			minDistance = distance
		}
	}

	return minDistance, nil
}

// Interpolate returns the point a fraction t of the way from start to end.
// Linear in lon/lat, which is adequate for road-scale segments.
func Interpolate(start, end Coordinate, t float64) Coordinate {
	return Coordinate{
		Longitude: start.Longitude + t*(end.Longitude-start.Longitude),
		Latitude:  start.Latitude + t*(end.Latitude-start.Latitude),
	}
}

// Bounds returns the bounding box of points, expanded by marginMeters on
// every side. The second return value is false when no useful box can be
// built: empty input, a box touching the poles, or a box that reaches the
// antimeridian, where raw longitudes no longer bound nearby points.
func Bounds(points []Coordinate, marginMeters float64) (BoundingBox, bool) {
	if len(points) == 0 {
		return BoundingBox{}, false
	}

	box := BoundingBox{
		MinLon: points[0].Longitude, MaxLon: points[0].Longitude,
		MinLat: points[0].Latitude, MaxLat: points[0].Latitude,
	}
	for _, p := range points[1:] {
		box.MinLon = math.Min(box.MinLon, p.Longitude)
		box.MaxLon = math.Max(box.MaxLon, p.Longitude)
		box.MinLat = math.Min(box.MinLat, p.Latitude)
		box.MaxLat = math.Max(box.MaxLat, p.Latitude)
	}

	latMargin := marginMeters / metersPerDegree
	box.MinLat -= latMargin
	box.MaxLat += latMargin

	maxAbsLat := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	if maxAbsLat >= 85 {
		return BoundingBox{}, false
	}

	lonMargin := marginMeters / (metersPerDegree * math.Cos(toRadians(maxAbsLat)))
	box.MinLon -= lonMargin
	box.MaxLon += lonMargin
	if box.MinLon <= -180 || box.MaxLon >= 180 {
		return BoundingBox{}, false
	}

	return box, true
}

// DecodePolyline decodes a Google encoded polyline string to a coordinate sequence
func DecodePolyline(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("failed to decode polyline: %d trailing bytes", len(rest))
	}

	points := make([]Coordinate, len(coords))
	for i, coord := range coords {
		// go-polyline yields [lat, lng] pairs
		points[i] = Coordinate{Latitude: coord[0], Longitude: coord[1]}
		if !points[i].Valid() {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// metersPerDegree is the length of one degree of latitude on the sphere
const metersPerDegree = EarthRadiusMeters * math.Pi / 180

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
