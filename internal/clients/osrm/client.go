package osrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/dpup/saferoute/server/internal/lib/geo"
	"github.com/dpup/saferoute/server/internal/lib/routing"
)

// DefaultServers are the public OSRM deployments, tried in order
var DefaultServers = []string{
	"http://router.project-osrm.org",
	"https://routing.openstreetmap.de/routed-car",
}

// maxAlternatives is the most OSRM will compute
const maxAlternatives = 3

// ErrAllServersFailed is returned when no server produced a usable answer
var ErrAllServersFailed = errors.New("all OSRM servers failed")

// Client fetches driving routes from one or more OSRM servers
type Client struct {
	servers    []string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client that tries servers in order
func NewClient(servers []string, userAgent string) *Client {
	if len(servers) == 0 {
		servers = DefaultServers
	}
	trimmed := make([]string, len(servers))
	for i, s := range servers {
		trimmed[i] = strings.TrimRight(s, "/")
	}
	return &Client{
		servers:   trimmed,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchRoutes returns up to alternatives routes from the first server that
// answers. A definitive "NoRoute" answer yields zero routes and no error.
func (c *Client) FetchRoutes(ctx context.Context, origin, destination geo.Coordinate, alternatives int) ([]routing.Route, error) {
	var errs []error
	for _, server := range c.servers {
		routes, err := c.fetch(ctx, server, origin, destination, alternatives)
		if err == nil {
			return routes, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Warnw(ctx, "OSRM server failed", "server", server, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", server, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrAllServersFailed, errors.Join(errs...))
}

func (c *Client) fetch(ctx context.Context, server string, origin, destination geo.Coordinate, alternatives int) ([]routing.Route, error) {
	params := url.Values{}
	params.Set("alternatives", strconv.Itoa(min(max(alternatives, 1), maxAlternatives)))
	params.Set("geometries", "geojson")
	params.Set("overview", "full")

	// OSRM expects lon,lat
	reqURL := fmt.Sprintf("%s/route/v1/driving/%s;%s?%s", server, origin, destination, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	var response RouteResponse
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, excerpt(body))
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	switch response.Code {
	case "Ok":
	case "NoRoute":
		return nil, nil
	default:
		return nil, fmt.Errorf("OSRM code %q (HTTP %d): %s", response.Code, resp.StatusCode, response.Message)
	}

	routes := make([]routing.Route, 0, len(response.Routes))
	for i, r := range response.Routes {
		route, err := r.toRoute()
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		routes = append(routes, route)
		if alternatives > 0 && len(routes) == alternatives {
			break
		}
	}
	return routes, nil
}

func excerpt(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// RouteResponse is the body of /route/v1
type RouteResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message,omitempty"`
	Routes  []Route `json:"routes"`
}

// Route is one OSRM route with a GeoJSON geometry
type Route struct {
	Distance float64           `json:"distance"` // meters
	Duration float64           `json:"duration"` // seconds
	Geometry *geojson.Geometry `json:"geometry"`
}

func (r Route) toRoute() (routing.Route, error) {
	if r.Geometry == nil {
		return routing.Route{}, errors.New("missing geometry")
	}
	line, ok := r.Geometry.Coordinates.(orb.LineString)
	if !ok {
		return routing.Route{}, fmt.Errorf("unexpected geometry type %s", r.Geometry.Type)
	}

	points := make([]geo.Coordinate, len(line))
	for i, p := range line {
		points[i] = geo.Coordinate{Longitude: p.Lon(), Latitude: p.Lat()}
	}
	return routing.Route{
		Points:      points,
		DistanceKm:  r.Distance / 1000,
		DurationMin: r.Duration / 60,
	}, nil
}
