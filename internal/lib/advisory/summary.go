package advisory

import (
	"github.com/dpup/saferoute/server/internal/planner"
)

// maxHazardNotes caps how many hazards are sent to the model
const maxHazardNotes = 5

// NewRouteSummary reduces a rendered route to an advisor input. origin and
// destination are the caller's original text.
func NewRouteSummary(origin, destination string, route planner.RouteResponse) RouteSummary {
	summary := RouteSummary{
		Origin:       origin,
		Destination:  destination,
		Rating:       route.Safety.Rating,
		Score:        route.Safety.Score,
		HazardCount:  route.Safety.HazardCount,
		CautionCount: route.Safety.CautionCount,
		SafeCount:    route.Safety.SafeCount,
		DistanceKm:   route.DistanceKm,
		DurationMin:  route.DurationMin,
		Degraded:     route.Degraded,
		Hazards:      []HazardNote{},
	}
	for i, h := range route.HazardousLocations {
		if i == maxHazardNotes {
			break
		}
		summary.Hazards = append(summary.Hazards, HazardNote{
			Name:       h.Name,
			Condition:  h.Classification.Condition,
			DistanceKm: h.DistanceKm,
		})
	}
	return summary
}
