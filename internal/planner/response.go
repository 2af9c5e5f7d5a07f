package planner

import (
	"encoding/json"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/dpup/saferoute/server/internal/lib/routing"
)

// ResponseOptions control how a PlanResult is rendered
type ResponseOptions struct {
	// MaxHazardousLocations caps hazardous_locations per route; 0 means no cap
	MaxHazardousLocations int
}

// Response is the wire form of a PlanResult
type Response struct {
	Origin           Point           `json:"origin"`
	Destination      Point           `json:"destination"`
	Routes           []RouteResponse `json:"routes"`
	RecommendedRoute RouteResponse   `json:"recommended_route"`
	Timestamp        string          `json:"timestamp"`
	Degraded         bool            `json:"degraded"`
	DegradedReason   string          `json:"degraded_reason,omitempty"`
	SnapshotVersion  string          `json:"snapshot_version"`
	Advisory         json.RawMessage `json:"advisory,omitempty"`
}

// Point is a coordinate in response form
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// RouteResponse describes one candidate route
type RouteResponse struct {
	RouteIndex         int                 `json:"route_index"`
	IsRecommended      bool                `json:"is_recommended"`
	DistanceKm         float64             `json:"distance_km"`
	DurationMin        float64             `json:"duration_min"`
	Safety             SafetyResponse      `json:"safety"`
	CamerasMonitored   int                 `json:"cameras_monitored"`
	HazardousLocations []HazardousLocation `json:"hazardous_locations"`
	Geometry           *geojson.Geometry   `json:"geometry"`
	Degraded           bool                `json:"degraded"`
}

// SafetyResponse is the score block of a route
type SafetyResponse struct {
	Score        float64 `json:"score"`
	Rating       string  `json:"rating"`
	HazardCount  int     `json:"hazard_count"`
	CautionCount int     `json:"caution_count"`
	SafeCount    int     `json:"safe_count"`
	TotalCameras int     `json:"total_cameras"`
}

// HazardousLocation is a hazardous camera along a route
type HazardousLocation struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	DistanceKm     float64        `json:"distance_km"`
	Classification Classification `json:"classification"`
}

// Classification is a camera's classifier output
type Classification struct {
	Condition   string  `json:"condition"`
	Confidence  float64 `json:"confidence"`
	SafetyLevel string  `json:"safety_level"`
}

// NewResponse renders result. Routes stay in input order; only the timestamp
// depends on anything other than result.
func NewResponse(result *PlanResult, now time.Time, opts ResponseOptions) Response {
	resp := Response{
		Origin:          Point{Longitude: result.Origin.Longitude, Latitude: result.Origin.Latitude},
		Destination:     Point{Longitude: result.Destination.Longitude, Latitude: result.Destination.Latitude},
		Routes:          make([]RouteResponse, len(result.Routes)),
		Timestamp:       now.UTC().Format(time.RFC3339),
		Degraded:        result.Degraded,
		DegradedReason:  result.DegradedReason,
		SnapshotVersion: result.SnapshotVersion,
	}

	for i, sr := range result.Routes {
		resp.Routes[i] = newRouteResponse(sr, i == result.RecommendedIndex, opts)
	}
	if len(resp.Routes) > 0 {
		resp.RecommendedRoute = resp.Routes[result.RecommendedIndex]
	}

	return resp
}

func newRouteResponse(sr ScoredRoute, recommended bool, opts ResponseOptions) RouteResponse {
	score := sr.Score

	hazards := score.HazardousLocations
	if opts.MaxHazardousLocations > 0 && len(hazards) > opts.MaxHazardousLocations {
		hazards = hazards[:opts.MaxHazardousLocations]
	}

	locations := make([]HazardousLocation, len(hazards))
	for i, h := range hazards {
		locations[i] = HazardousLocation{
			ID:         h.CameraID,
			Name:       h.DisplayName,
			Latitude:   h.Location.Latitude,
			Longitude:  h.Location.Longitude,
			DistanceKm: round(h.DistanceToRouteM/1000, 3),
			Classification: Classification{
				Condition:   h.Condition,
				Confidence:  h.Confidence,
				SafetyLevel: string(routing.Hazardous),
			},
		}
	}

	line := make(orb.LineString, len(sr.Route.Points))
	for i, p := range sr.Route.Points {
		line[i] = orb.Point{p.Longitude, p.Latitude}
	}

	return RouteResponse{
		RouteIndex:    score.RouteIndex,
		IsRecommended: recommended,
		DistanceKm:    round(sr.Route.DistanceKm, 2),
		DurationMin:   round(sr.Route.DurationMin, 1),
		Safety: SafetyResponse{
			Score:        round(score.Score, 1),
			Rating:       string(score.Rating),
			HazardCount:  score.HazardCount,
			CautionCount: score.CautionCount,
			SafeCount:    score.SafeCount,
			TotalCameras: score.TotalCameras,
		},
		CamerasMonitored:   score.TotalCameras,
		HazardousLocations: locations,
		Geometry:           geojson.NewGeometry(line),
		Degraded:           sr.Degraded,
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
