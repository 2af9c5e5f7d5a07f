package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"github.com/dpup/saferoute/server/internal/lib/geo"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var (
	saltLakeCity = geo.Coordinate{Longitude: -111.8910, Latitude: 40.7608}
	parkCity     = geo.Coordinate{Longitude: -111.4980, Latitude: 40.6461}
)

func encodePolyline(points []geo.Coordinate) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

func routesBody(t *testing.T, n int) string {
	route := map[string]any{
		"duration":       "1920s",
		"distanceMeters": 45870,
		"polyline": map[string]any{
			"encodedPolyline": encodePolyline([]geo.Coordinate{saltLakeCity, {Longitude: -111.6300, Latitude: 40.7540}, parkCity}),
		},
	}
	routes := make([]any, n)
	for i := range routes {
		routes[i] = route
	}
	body, err := json.Marshal(map[string]any{"routes": routes})
	require.NoError(t, err)
	return string(body)
}

func TestFetchRoutes_Success(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		var body computeRoutesRequest
		raw, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(raw, &body)
		return req.URL.String() == "https://routes.googleapis.com/directions/v2:computeRoutes" &&
			req.Header.Get("X-Goog-Api-Key") == "test-api-key" &&
			req.Header.Get("X-Goog-FieldMask") == fieldMask &&
			body.ComputeAlternativeRoutes &&
			body.Origin.Location.LatLng.Latitude == saltLakeCity.Latitude
	})).Return(createMockResponse(200, routesBody(t, 3)), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com/", mockHTTP)

	routes, err := client.FetchRoutes(context.Background(), saltLakeCity, parkCity, 2)
	require.NoError(t, err)
	require.Len(t, routes, 2, "truncated to the requested alternatives")

	r := routes[0]
	assert.InDelta(t, 32.41, r.DistanceKm, 1e-9)
	assert.InDelta(t, 34.5, r.DurationMin, 1e-9)
	require.Len(t, r.Points, 3)
	assert.InDelta(t, saltLakeCity.Latitude, r.Points[0].Latitude, 1e-5)
	assert.InDelta(t, parkCity.Longitude, r.Points[2].Longitude, 1e-5)
	mockHTTP.AssertExpectations(t)
}

func TestFetchRoutes_NoRoutes(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.Anything).Return(createMockResponse(200, `{}`), nil)

	routes, err := NewClientWithHTTPDoer("k", "https://example.test", mockHTTP).FetchRoutes(context.Background(), saltLakeCity, parkCity, 3)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestFetchRoutes_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		contains string
	}{
		{"rate limited", 429, "", "rate limit"},
		{"forbidden", 403, `{"error":{"message":"API key not valid"}}`, "API error 403"},
		{"garbage", 200, `not json`, "failed to decode"},
		{"bad duration", 200, `{"routes":[{"duration":"soon","distanceMeters":1,"polyline":{"encodedPolyline":""}}]}`, "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			mockHTTP.On("Do", mock.Anything).Return(createMockResponse(tt.status, tt.body), nil)

			_, err := NewClientWithHTTPDoer("k", "https://example.test", mockHTTP).FetchRoutes(context.Background(), saltLakeCity, parkCity, 1)
			assert.ErrorContains(t, err, tt.contains)
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("450s")
	require.NoError(t, err)
	assert.Equal(t, 450.0, d)

	d, err = parseDuration("12.5s")
	require.NoError(t, err)
	assert.Equal(t, 12.5, d)

	_, err = parseDuration("")
	assert.Error(t, err)
}
