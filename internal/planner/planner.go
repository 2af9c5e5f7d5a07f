package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/saferoute/server/internal/cameras"
	"github.com/dpup/saferoute/server/internal/lib/geo"
	"github.com/dpup/saferoute/server/internal/lib/ranking"
	"github.com/dpup/saferoute/server/internal/lib/routing"
	"github.com/dpup/saferoute/server/internal/lib/safety"
)

// Geocoder resolves free text to a coordinate
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geo.Coordinate, error)
}

// RouteSource fetches up to alternatives candidate routes between two points
type RouteSource interface {
	FetchRoutes(ctx context.Context, origin, destination geo.Coordinate, alternatives int) ([]routing.Route, error)
}

// SnapshotProvider hands out the current camera snapshot
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*cameras.Snapshot, error)
}

// Options tune the planner
type Options struct {
	DefaultAlternatives int
	MaxAlternatives     int
	// FallbackSpeedKmh estimates duration for straight-line fallback routes
	FallbackSpeedKmh float64
}

// DefaultOptions returns the standard planner options
func DefaultOptions() Options {
	return Options{
		DefaultAlternatives: 3,
		MaxAlternatives:     3,
		FallbackSpeedKmh:    90,
	}
}

// Request is a single planning request
type Request struct {
	Origin       string
	Destination  string
	Alternatives int
}

// RouteSet is what the planner got back from route fetching: either real
// routes or a degraded straight-line stand-in
type RouteSet struct {
	Routes   []routing.Route
	Degraded bool
	Reason   string
}

// ScoredRoute pairs a route with its safety score
type ScoredRoute struct {
	Route    routing.Route
	Score    safety.RouteScore
	Degraded bool
}

// PlanResult is the outcome of a successful plan
type PlanResult struct {
	Origin           geo.Coordinate
	Destination      geo.Coordinate
	Routes           []ScoredRoute
	RecommendedIndex int
	Degraded         bool
	DegradedReason   string
	SnapshotVersion  string
}

// Recommended returns the recommended route
func (r *PlanResult) Recommended() ScoredRoute {
	return r.Routes[r.RecommendedIndex]
}

// Planner resolves endpoints, fetches routes, and ranks them against camera conditions
type Planner struct {
	geocoder  Geocoder
	routes    RouteSource
	snapshots SnapshotProvider
	ranker    *ranking.Ranker
	opts      Options
}

// New creates a new Planner
func New(geocoder Geocoder, routes RouteSource, snapshots SnapshotProvider, ranker *ranking.Ranker, opts Options) *Planner {
	if opts.DefaultAlternatives <= 0 {
		opts.DefaultAlternatives = 3
	}
	if opts.MaxAlternatives <= 0 {
		opts.MaxAlternatives = 3
	}
	if opts.FallbackSpeedKmh <= 0 {
		opts.FallbackSpeedKmh = 90
	}
	return &Planner{
		geocoder:  geocoder,
		routes:    routes,
		snapshots: snapshots,
		ranker:    ranker,
		opts:      opts,
	}
}

// Plan runs one request end to end. It either returns a complete result or a
// typed error; nothing is retried.
func (p *Planner) Plan(ctx context.Context, req Request) (*PlanResult, error) {
	alternatives := req.Alternatives
	if alternatives == 0 {
		alternatives = p.opts.DefaultAlternatives
	}
	if alternatives < 1 || alternatives > p.opts.MaxAlternatives {
		return nil, &ValidationError{
			Field:  "alternatives",
			Reason: fmt.Sprintf("must be between 1 and %d, got %d", p.opts.MaxAlternatives, req.Alternatives),
		}
	}

	originLoc, err := ParseLocation(Origin, req.Origin)
	if err != nil {
		return nil, err
	}
	destinationLoc, err := ParseLocation(Destination, req.Destination)
	if err != nil {
		return nil, err
	}

	origin, err := p.resolve(ctx, Origin, originLoc)
	if err != nil {
		return nil, err
	}
	destination, err := p.resolve(ctx, Destination, destinationLoc)
	if err != nil {
		return nil, err
	}

	// One snapshot for the whole request, taken before routes are fetched
	snapshot, err := p.snapshots.Snapshot(ctx)
	if err != nil {
		if terr := timeout(ctx, "snapshot", err); terr != nil {
			return nil, terr
		}
		return nil, &SnapshotUnavailableError{Err: err}
	}
	if snapshot == nil {
		return nil, &SnapshotUnavailableError{}
	}

	set, err := p.fetchRoutes(ctx, origin, destination, alternatives)
	if err != nil {
		return nil, err
	}

	ranked, err := p.ranker.Rank(ctx, set.Routes, snapshot.Cameras)
	if err != nil {
		if terr := timeout(ctx, "ranking", err); terr != nil {
			return nil, terr
		}
		var invalid *routing.InvalidRouteError
		if errors.As(err, &invalid) {
			return nil, &ValidationError{Field: "routes", Reason: invalid.Error(), Err: err}
		}
		if errors.Is(err, ranking.ErrNoRoutes) {
			return nil, &NoRouteError{Reason: "route source returned no routes"}
		}
		return nil, fmt.Errorf("failed to rank routes: %w", err)
	}

	result := &PlanResult{
		Origin:           origin,
		Destination:      destination,
		Routes:           make([]ScoredRoute, len(set.Routes)),
		RecommendedIndex: ranked.RecommendedIndex,
		Degraded:         set.Degraded,
		DegradedReason:   set.Reason,
		SnapshotVersion:  snapshot.Version,
	}
	for i, route := range set.Routes {
		result.Routes[i] = ScoredRoute{
			Route:    route,
			Score:    ranked.Scores[i],
			Degraded: set.Degraded,
		}
	}

	return result, nil
}

func (p *Planner) resolve(ctx context.Context, side Side, loc Location) (geo.Coordinate, error) {
	switch l := loc.(type) {
	case LiteralLocation:
		return l.Coordinate, nil
	case TextLocation:
		if err := ctx.Err(); err != nil {
			return geo.Coordinate{}, &TimeoutError{Stage: "geocode " + string(side), Err: err}
		}
		c, err := p.geocoder.Geocode(ctx, l.Query)
		if err != nil {
			if terr := timeout(ctx, "geocode "+string(side), err); terr != nil {
				return geo.Coordinate{}, terr
			}
			return geo.Coordinate{}, &GeocodeError{Side: side, Query: l.Query, Err: err}
		}
		if !c.Valid() {
			return geo.Coordinate{}, &GeocodeError{Side: side, Query: l.Query, Err: geo.ErrInvalidCoordinate}
		}
		return c, nil
	default:
		return geo.Coordinate{}, &ValidationError{Field: string(side), Reason: fmt.Sprintf("unsupported location %T", loc)}
	}
}

// fetchRoutes asks the route source for candidates, substituting a straight
// line when the source fails
func (p *Planner) fetchRoutes(ctx context.Context, origin, destination geo.Coordinate, alternatives int) (RouteSet, error) {
	if err := ctx.Err(); err != nil {
		return RouteSet{}, &TimeoutError{Stage: "routes", Err: err}
	}

	routes, err := p.routes.FetchRoutes(ctx, origin, destination, alternatives)
	if err != nil {
		// Only the caller's deadline is fatal; a source that times out on
		// its own is handled like any other source failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RouteSet{}, &TimeoutError{Stage: "routes", Err: ctxErr}
		}

		fallback, ferr := StraightLine(origin, destination, p.opts.FallbackSpeedKmh)
		if ferr != nil {
			return RouteSet{}, &NoRouteError{Reason: fmt.Sprintf("route source failed (%v) and fallback could not be built: %v", err, ferr)}
		}

		logging.Warnw(ctx, "Route source failed, using straight-line fallback",
			"origin", origin.String(),
			"destination", destination.String(),
			"error", err)

		return RouteSet{
			Routes:   []routing.Route{fallback},
			Degraded: true,
			Reason:   "route source unavailable: " + err.Error(),
		}, nil
	}

	if len(routes) == 0 {
		return RouteSet{}, &NoRouteError{Reason: "route source returned no routes"}
	}
	if len(routes) > alternatives {
		routes = routes[:alternatives]
	}

	return RouteSet{Routes: routes}, nil
}

// StraightLine builds the two-point route used when no real route is available
func StraightLine(origin, destination geo.Coordinate, speedKmh float64) (routing.Route, error) {
	if speedKmh <= 0 {
		return routing.Route{}, fmt.Errorf("invalid fallback speed %v", speedKmh)
	}
	meters, err := geo.Haversine(origin, destination)
	if err != nil {
		return routing.Route{}, err
	}
	distanceKm := meters / 1000
	return routing.Route{
		Points:      []geo.Coordinate{origin, destination},
		DistanceKm:  distanceKm,
		DurationMin: distanceKm / speedKmh * 60,
	}, nil
}

// timeout returns a TimeoutError when the request context has ended or err is
// itself a context error
func timeout(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TimeoutError{Stage: stage, Err: ctxErr}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TimeoutError{Stage: stage, Err: err}
	}
	return nil
}
