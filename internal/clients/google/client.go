package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/saferoute/server/internal/lib/geo"
	"github.com/dpup/saferoute/server/internal/lib/routing"
)

const fieldMask = "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline"

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to Google Routes API v2
type Client struct {
	apiKey     string
	httpClient HTTPDoer
	baseURL    string
}

// NewClient creates a new Google Routes API client
func NewClient(apiKey string) *Client {
	return NewClientWithHTTPDoer(apiKey, "https://routes.googleapis.com", &http.Client{
		Timeout: 30 * time.Second,
	})
}

// NewClientWithHTTPDoer creates a client against baseURL using doer
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: doer,
	}
}

// FetchRoutes requests up to alternatives driving routes. Google returns at
// most three routes; the first is the primary.
func (c *Client) FetchRoutes(ctx context.Context, origin, destination geo.Coordinate, alternatives int) ([]routing.Route, error) {
	requestBody := computeRoutesRequest{
		Origin:                   waypoint(origin),
		Destination:              waypoint(destination),
		TravelMode:               "DRIVE",
		RoutingPreference:        "TRAFFIC_AWARE",
		ComputeAlternativeRoutes: alternatives > 1,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/directions/v2:computeRoutes", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// The API rejects requests without a field mask
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var response RoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	routes := make([]routing.Route, 0, len(response.Routes))
	for i, r := range response.Routes {
		route, err := convertRoute(r)
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

func convertRoute(r Route) (routing.Route, error) {
	seconds, err := parseDuration(r.Duration)
	if err != nil {
		return routing.Route{}, fmt.Errorf("failed to parse duration: %w", err)
	}
	points, err := geo.DecodePolyline(r.Polyline.EncodedPolyline)
	if err != nil {
		return routing.Route{}, err
	}
	return routing.Route{
		Points:      points,
		DistanceKm:  float64(r.DistanceMeters) / 1000,
		DurationMin: seconds / 60,
	}, nil
}

// parseDuration parses Google's duration format like "450s" to seconds
func parseDuration(durationStr string) (float64, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	return strconv.ParseFloat(strings.TrimSuffix(durationStr, "s"), 64)
}

func waypoint(c geo.Coordinate) Waypoint {
	var w Waypoint
	w.Location.LatLng = LatLng{Latitude: c.Latitude, Longitude: c.Longitude}
	return w
}

type computeRoutesRequest struct {
	Origin                   Waypoint `json:"origin"`
	Destination              Waypoint `json:"destination"`
	TravelMode               string   `json:"travelMode"`
	RoutingPreference        string   `json:"routingPreference"`
	ComputeAlternativeRoutes bool     `json:"computeAlternativeRoutes"`
}

// Waypoint is a request endpoint
type Waypoint struct {
	Location struct {
		LatLng LatLng `json:"latLng"`
	} `json:"location"`
}

// LatLng is Google's coordinate pair
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RoutesResponse represents the API response structure
type RoutesResponse struct {
	Routes []Route `json:"routes"`
}

// Route represents a single route in the response
type Route struct {
	Duration       string   `json:"duration"`
	DistanceMeters int32    `json:"distanceMeters"`
	Polyline       Polyline `json:"polyline"`
}

// Polyline represents the route polyline
type Polyline struct {
	EncodedPolyline string `json:"encodedPolyline"`
}
