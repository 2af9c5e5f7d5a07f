package routing

import (
	"fmt"
	"time"

	"github.com/dpup/saferoute/server/internal/lib/geo"
)

// DefaultBufferMeters is how close a camera must be to a route to count
const DefaultBufferMeters = 500.0

// SafetyLevel is the classifier's verdict for a camera's road conditions
type SafetyLevel string

const (
	Safe      SafetyLevel = "safe"
	Caution   SafetyLevel = "caution"
	Hazardous SafetyLevel = "hazardous"
	Unknown   SafetyLevel = "unknown"
)

// ParseSafetyLevel maps free text to a SafetyLevel. Anything unrecognised is Unknown.
func ParseSafetyLevel(s string) SafetyLevel {
	switch SafetyLevel(s) {
	case Safe, Caution, Hazardous:
		return SafetyLevel(s)
	default:
		return Unknown
	}
}

// Route is a candidate path between origin and destination
type Route struct {
	Points      []geo.Coordinate `json:"points"`
	DistanceKm  float64          `json:"distance_km"`
	DurationMin float64          `json:"duration_min"`
}

// Validate checks the route has usable geometry
func (r Route) Validate() error {
	if len(r.Points) < 2 {
		return &InvalidRouteError{Reason: fmt.Sprintf("route must have at least 2 points, got %d", len(r.Points))}
	}
	for i, p := range r.Points {
		if !p.Valid() {
			return &InvalidRouteError{Reason: fmt.Sprintf("point %d is out of range", i)}
		}
	}
	return nil
}

// CameraObservation is the latest classified reading from one roadside camera
type CameraObservation struct {
	CameraID    string         `json:"camera_id"`
	Location    geo.Coordinate `json:"location"`
	DisplayName string         `json:"display_name"`
	Condition   string         `json:"condition"`
	Confidence  float64        `json:"confidence"`
	SafetyLevel SafetyLevel    `json:"safety_level"`
	ObservedAt  time.Time      `json:"observed_at"`
}

// Match records that a camera lies within the buffer of a route
type Match struct {
	Camera           CameraObservation `json:"camera"`
	RouteIndex       int               `json:"route_index"`
	DistanceToRouteM float64           `json:"distance_to_route_m"`
}

// InvalidRouteError is returned for routes that cannot be matched against
type InvalidRouteError struct {
	RouteIndex int
	Reason     string
}

func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid route %d: %s", e.RouteIndex, e.Reason)
}
