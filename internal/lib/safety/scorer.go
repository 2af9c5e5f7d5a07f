package safety

import (
	"sort"

	"github.com/dpup/saferoute/server/internal/lib/geo"
	"github.com/dpup/saferoute/server/internal/lib/routing"
)

// Rating summarises a route's conditions
type Rating string

const (
	RatingSafe      Rating = "safe"
	RatingCaution   Rating = "caution"
	RatingHazardous Rating = "hazardous"
	RatingUnknown   Rating = "unknown"
)

// Weights are the additive contributions of each camera bucket to a route score
type Weights struct {
	Base      float64 `koanf:"base" yaml:"base"`
	Hazardous float64 `koanf:"hazardous" yaml:"hazardous"`
	Caution   float64 `koanf:"caution" yaml:"caution"`
	Safe      float64 `koanf:"safe" yaml:"safe"`

	// CautionThreshold is the caution share of known cameras above which a
	// route without hazards is rated caution
	CautionThreshold float64 `koanf:"cautionThreshold" yaml:"caution_threshold"`
}

// DefaultWeights returns the standard scoring weights
func DefaultWeights() Weights {
	return Weights{
		Base:             100,
		Hazardous:        -30,
		Caution:          -10,
		Safe:             5,
		CautionThreshold: 0.30,
	}
}

// HazardLocation is a hazardous camera on a route
type HazardLocation struct {
	CameraID         string
	DisplayName      string
	Location         geo.Coordinate
	Condition        string
	Confidence       float64
	DistanceToRouteM float64
}

// RouteScore is the aggregate safety assessment of one route
type RouteScore struct {
	RouteIndex         int
	Score              float64
	Rating             Rating
	HazardCount        int
	CautionCount       int
	SafeCount          int
	UnknownCount       int
	TotalCameras       int
	HazardousLocations []HazardLocation
}

// Scorer turns matched cameras into a RouteScore
type Scorer struct {
	weights Weights
}

// NewScorer creates a new Scorer with the given weights
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score aggregates matches for a single route. The score is not clamped and
// goes negative on routes with many hazards.
func (s *Scorer) Score(routeIndex int, matches []routing.Match) RouteScore {
	result := RouteScore{
		RouteIndex:         routeIndex,
		TotalCameras:       len(matches),
		HazardousLocations: []HazardLocation{},
	}

	for _, m := range matches {
		switch m.Camera.SafetyLevel {
		case routing.Hazardous:
			result.HazardCount++
			result.HazardousLocations = append(result.HazardousLocations, HazardLocation{
				CameraID:         m.Camera.CameraID,
				DisplayName:      m.Camera.DisplayName,
				Location:         m.Camera.Location,
				Condition:        m.Camera.Condition,
				Confidence:       m.Camera.Confidence,
				DistanceToRouteM: m.DistanceToRouteM,
			})
		case routing.Caution:
			result.CautionCount++
		case routing.Safe:
			result.SafeCount++
		default:
			result.UnknownCount++
		}
	}

	result.Score = s.weights.Base +
		s.weights.Hazardous*float64(result.HazardCount) +
		s.weights.Caution*float64(result.CautionCount) +
		s.weights.Safe*float64(result.SafeCount)

	result.Rating = s.rate(result.HazardCount, result.CautionCount, result.SafeCount)

	sort.SliceStable(result.HazardousLocations, func(i, j int) bool {
		a, b := result.HazardousLocations[i], result.HazardousLocations[j]
		if a.DistanceToRouteM != b.DistanceToRouteM {
			return a.DistanceToRouteM < b.DistanceToRouteM
		}
		return a.CameraID < b.CameraID
	})

	return result
}

func (s *Scorer) rate(hazard, caution, safe int) Rating {
	known := hazard + caution + safe
	switch {
	case hazard > 0:
		return RatingHazardous
	case known == 0:
		return RatingUnknown
	case float64(caution)/float64(known) > s.weights.CautionThreshold:
		return RatingCaution
	default:
		return RatingSafe
	}
}
