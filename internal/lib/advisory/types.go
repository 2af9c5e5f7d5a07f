package advisory

import (
	"context"
	"time"
)

// HazardNote is a hazardous camera as the advisor sees it
type HazardNote struct {
	Name       string  `json:"name"`
	Condition  string  `json:"condition"`
	DistanceKm float64 `json:"distance_km"`
}

// RouteSummary is the recommended route reduced to what the advisor needs
type RouteSummary struct {
	Origin       string       `json:"origin"`
	Destination  string       `json:"destination"`
	Rating       string       `json:"rating"`
	Score        float64      `json:"score"`
	HazardCount  int          `json:"hazard_count"`
	CautionCount int          `json:"caution_count"`
	SafeCount    int          `json:"safe_count"`
	DistanceKm   float64      `json:"distance_km"`
	DurationMin  float64      `json:"duration_min"`
	Degraded     bool         `json:"degraded"`
	Hazards      []HazardNote `json:"hazards"`
}

// Advisory is driver-facing guidance for a planned trip
type Advisory struct {
	Headline         string    `json:"headline"`
	Details          string    `json:"details"`
	Recommendation   string    `json:"recommendation"` // enum: proceed, proceed_with_caution, delay_travel, avoid
	CondensedSummary string    `json:"condensed_summary"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Advisor interface defines AI-generated trip advice
type Advisor interface {
	// Advise writes guidance for a single route
	Advise(ctx context.Context, summary RouteSummary) (Advisory, error)

	// Health check for AI service
	HealthCheck(ctx context.Context) error
}
