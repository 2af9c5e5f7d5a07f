package nominatim

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

	"golang.org/x/time/rate"

	"github.com/dpup/saferoute/server/internal/lib/geo"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// ErrNotFound is returned when the query matches no place
var ErrNotFound = errors.New("no geocoding match")

// Client resolves free-text places with Nominatim. Requests are throttled to
// the public usage policy of one per second.
type Client struct {
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewClient creates a geocoding client. A zero requestsPerSecond means 1.
func NewClient(baseURL, userAgent string, requestsPerSecond float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for query
func (c *Client) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return geo.Coordinate{}, limiterError(ctx, err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return geo.Coordinate{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var results []place
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(results) == 0 {
		return geo.Coordinate{}, fmt.Errorf("%w for %q", ErrNotFound, query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}
	return geo.NewCoordinate(lon, lat)
}

// limiterError reports a limiter failure. Wait refuses early, before ctx
// expires, when the next token would arrive after the deadline; that is
// still a deadline failure.
func limiterError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rate limiter: %w", ctxErr)
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("rate limiter: %w: %v", context.DeadlineExceeded, err)
	}
	return fmt.Errorf("rate limiter: %w", err)
}
