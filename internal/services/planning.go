package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dpup/prefab/logging"
	"google.golang.org/grpc/codes"

	"github.com/dpup/saferoute/server/internal/cameras"
	"github.com/dpup/saferoute/server/internal/lib/advisory"
	"github.com/dpup/saferoute/server/internal/lib/export"
	"github.com/dpup/saferoute/server/internal/lib/routing"
	"github.com/dpup/saferoute/server/internal/metrics"
	"github.com/dpup/saferoute/server/internal/planner"
)

// maxStatsHazards caps hazardous_cameras in the stats response
const maxStatsHazards = 10

// ErrCameraNotFound is returned by Camera for unknown ids
var ErrCameraNotFound = errors.New("camera not found")

// PlanRequest is the body of a plan call
type PlanRequest struct {
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Alternatives int    `json:"alternatives,omitempty"`
	Advisory     bool   `json:"advisory,omitempty"`
}

// PlanningService serves route plans and camera conditions. HTTP and gRPC
// handlers are thin wrappers over its methods.
type PlanningService struct {
	planner        *planner.Planner
	store          *cameras.Store
	advisor        advisory.Advisor
	responseOpts   planner.ResponseOptions
	requestTimeout time.Duration
	now            func() time.Time
}

// NewPlanningService creates a new PlanningService. advisor may be nil, in
// which case advisory requests are ignored.
func NewPlanningService(p *planner.Planner, store *cameras.Store, advisor advisory.Advisor, responseOpts planner.ResponseOptions, requestTimeout time.Duration) *PlanningService {
	return &PlanningService{
		planner:        p,
		store:          store,
		advisor:        advisor,
		responseOpts:   responseOpts,
		requestTimeout: requestTimeout,
		now:            time.Now,
	}
}

// Plan plans a trip and renders the response
func (s *PlanningService) Plan(ctx context.Context, req PlanRequest) (planner.Response, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.planner.Plan(ctx, planner.Request{
		Origin:       req.Origin,
		Destination:  req.Destination,
		Alternatives: req.Alternatives,
	})
	metrics.PlanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Plans.WithLabelValues(outcomeFor(err)).Inc()
		logging.Warnw(ctx, "Route planning failed",
			"origin", req.Origin, "destination", req.Destination, "error", err)
		return planner.Response{}, err
	}

	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	metrics.Plans.WithLabelValues(outcome).Inc()
	for _, r := range result.Routes {
		metrics.RoutesRated.WithLabelValues(string(r.Score.Rating)).Inc()
	}

	resp := planner.NewResponse(result, s.now(), s.responseOpts)
	if req.Advisory && s.advisor != nil {
		resp.Advisory = s.advise(ctx, req, resp.RecommendedRoute)
	}

	recommended := result.Recommended()
	logging.Infow(ctx, "Route planned",
		"routes", len(result.Routes),
		"recommended", result.RecommendedIndex,
		"rating", recommended.Score.Rating,
		"score", recommended.Score.Score,
		"degraded", result.Degraded,
		"snapshot", result.SnapshotVersion)

	return resp, nil
}

// advise returns the encoded advisory for route, or nil when generation fails.
// Advisories are optional so a failure never fails the plan.
func (s *PlanningService) advise(ctx context.Context, req PlanRequest, route planner.RouteResponse) json.RawMessage {
	adv, err := s.advisor.Advise(ctx, advisory.NewRouteSummary(req.Origin, req.Destination, route))
	if err != nil {
		metrics.AdvisoryRequests.WithLabelValues("error").Inc()
		logging.Warnw(ctx, "Advisory unavailable", "error", err)
		return nil
	}
	data, err := json.Marshal(adv)
	if err != nil {
		metrics.AdvisoryRequests.WithLabelValues("error").Inc()
		return nil
	}
	metrics.AdvisoryRequests.WithLabelValues("ok").Inc()
	return data
}

// ExportKML plans a trip and renders it as a KML document
func (s *PlanningService) ExportKML(ctx context.Context, req PlanRequest) ([]byte, error) {
	req.Advisory = false
	resp, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("%s to %s", req.Origin, req.Destination)
	if err := export.WriteKML(&buf, title, resp); err != nil {
		return nil, fmt.Errorf("failed to render KML: %w", err)
	}
	return buf.Bytes(), nil
}

// CameraResponse is the wire form of one camera
type CameraResponse struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	Latitude       float64                 `json:"latitude"`
	Longitude      float64                 `json:"longitude"`
	Status         string                  `json:"status"`
	Error          string                  `json:"error,omitempty"`
	Classification *planner.Classification `json:"classification"`
	ObservedAt     *time.Time              `json:"observed_at,omitempty"`
}

// StatsSummary counts cameras by safety level
type StatsSummary struct {
	Total     int `json:"total"`
	Safe      int `json:"safe"`
	Caution   int `json:"caution"`
	Hazardous int `json:"hazardous"`
	Unknown   int `json:"unknown"`
	Failed    int `json:"failed"`
}

// ConditionsResponse lists every camera in the snapshot
type ConditionsResponse struct {
	Cameras         []CameraResponse `json:"cameras"`
	Stats           StatsSummary     `json:"stats"`
	LastUpdated     string           `json:"last_updated"`
	Timestamp       string           `json:"timestamp"`
	SnapshotVersion string           `json:"snapshot_version"`
}

// StatsResponse is the stats summary plus a sample of hazardous cameras
type StatsResponse struct {
	Stats            StatsSummary     `json:"stats"`
	HazardousCameras []CameraResponse `json:"hazardous_cameras"`
	LastUpdated      string           `json:"last_updated"`
	Timestamp        string           `json:"timestamp"`
}

// Conditions returns every camera in the current snapshot
func (s *PlanningService) Conditions(ctx context.Context) (ConditionsResponse, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return ConditionsResponse{}, err
	}

	resp := ConditionsResponse{
		Cameras:         make([]CameraResponse, len(snap.Cameras)),
		Stats:           summarize(snap),
		LastUpdated:     lastUpdated(snap),
		Timestamp:       s.now().UTC().Format(time.RFC3339),
		SnapshotVersion: snap.Version,
	}
	for i, c := range snap.Cameras {
		resp.Cameras[i] = newCameraResponse(c)
	}
	return resp, nil
}

// Stats returns snapshot statistics and the first hazardous cameras by id
func (s *PlanningService) Stats(ctx context.Context) (StatsResponse, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return StatsResponse{}, err
	}

	hazardous := snap.ByLevel(routing.Hazardous)
	if len(hazardous) > maxStatsHazards {
		hazardous = hazardous[:maxStatsHazards]
	}
	resp := StatsResponse{
		Stats:            summarize(snap),
		HazardousCameras: make([]CameraResponse, len(hazardous)),
		LastUpdated:      lastUpdated(snap),
		Timestamp:        s.now().UTC().Format(time.RFC3339),
	}
	for i, c := range hazardous {
		resp.HazardousCameras[i] = newCameraResponse(c)
	}
	return resp, nil
}

// Camera returns a single camera
func (s *PlanningService) Camera(ctx context.Context, id string) (CameraResponse, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return CameraResponse{}, err
	}
	if c, ok := snap.Camera(id); ok {
		return newCameraResponse(c), nil
	}
	// Cameras whose last classification failed are known but carry no reading
	if failed, ok := snap.FailedCamera(id); ok {
		resp := CameraResponse{
			ID:     failed.CameraID,
			Name:   failed.DisplayName,
			Status: failed.Status,
			Error:  failed.Error,
		}
		if failed.Location != nil {
			resp.Latitude = failed.Location.Latitude
			resp.Longitude = failed.Location.Longitude
		}
		return resp, nil
	}
	return CameraResponse{}, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
}

// Health reports liveness and snapshot freshness
func (s *PlanningService) Health(ctx context.Context) map[string]any {
	now := s.now()
	health := map[string]any{
		"status":    "ok",
		"service":   "saferoute",
		"timestamp": now.UTC().Format(time.RFC3339),
		"source":    s.store.SourceName(),
	}
	if age, ok := s.store.Age(now); ok {
		health["snapshot_age_seconds"] = int(age.Seconds())
	} else {
		health["status"] = "degraded"
	}
	return health
}

func (s *PlanningService) snapshot(ctx context.Context) (*cameras.Snapshot, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, &planner.SnapshotUnavailableError{Err: err}
	}
	return snap, nil
}

func summarize(snap *cameras.Snapshot) StatsSummary {
	stats := snap.Stats()
	return StatsSummary{
		Total:     stats.TotalCameras,
		Safe:      stats.SafetyLevelCounts[routing.Safe],
		Caution:   stats.SafetyLevelCounts[routing.Caution],
		Hazardous: stats.SafetyLevelCounts[routing.Hazardous],
		Unknown:   stats.SafetyLevelCounts[routing.Unknown],
		Failed:    stats.Failed,
	}
}

func lastUpdated(snap *cameras.Snapshot) string {
	t := snap.SourceUpdatedAt
	if t.IsZero() {
		t = snap.LoadedAt
	}
	return t.UTC().Format(time.RFC3339)
}

func newCameraResponse(c routing.CameraObservation) CameraResponse {
	resp := CameraResponse{
		ID:        c.CameraID,
		Name:      c.DisplayName,
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
		Status:    cameras.StatusSuccess,
		Classification: &planner.Classification{
			Condition:   c.Condition,
			Confidence:  c.Confidence,
			SafetyLevel: string(c.SafetyLevel),
		},
	}
	if !c.ObservedAt.IsZero() {
		observed := c.ObservedAt.UTC()
		resp.ObservedAt = &observed
	}
	return resp
}

// codeFor maps domain errors to gRPC codes. HTTP statuses derive from these.
func codeFor(err error) codes.Code {
	var (
		validation *planner.ValidationError
		geocode    *planner.GeocodeError
		noRoute    *planner.NoRouteError
		snapshot   *planner.SnapshotUnavailableError
		timeout    *planner.TimeoutError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &geocode):
		return codes.InvalidArgument
	case errors.As(err, &noRoute), errors.Is(err, ErrCameraNotFound):
		return codes.NotFound
	case errors.As(err, &snapshot):
		return codes.Unavailable
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func outcomeFor(err error) string {
	switch codeFor(err) {
	case codes.InvalidArgument:
		return "invalid"
	case codes.NotFound:
		return "no_route"
	case codes.Unavailable:
		return "snapshot_unavailable"
	case codes.DeadlineExceeded, codes.Canceled:
		return "timeout"
	default:
		return "error"
	}
}
