package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/saferoute/server/internal/lib/geo"
)

func TestGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Park City, UT", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "saferoute-test/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"lat":"40.6461","lon":"-111.4980","display_name":"Park City, Summit County, Utah"}]`))
	}))
	defer server.Close()

	coord, err := NewClient(server.URL, "saferoute-test/1.0", 100).Geocode(context.Background(), "Park City, UT")
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Longitude: -111.498, Latitude: 40.6461}, coord)
}

func TestGeocode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"no match", 200, `[]`, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) }},
		{"blocked", 403, `Access denied`, func(t *testing.T, err error) { assert.ErrorContains(t, err, "HTTP 403") }},
		{"garbage", 200, `<html>`, func(t *testing.T, err error) { assert.ErrorContains(t, err, "failed to parse") }},
		{"bad lat", 200, `[{"lat":"north","lon":"1"}]`, func(t *testing.T, err error) { assert.ErrorContains(t, err, "invalid latitude") }},
		{"out of range", 200, `[{"lat":"91","lon":"1"}]`, func(t *testing.T, err error) { assert.ErrorIs(t, err, geo.ErrInvalidCoordinate) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "test", 100).Geocode(context.Background(), "nowhere")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGeocode_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"40.7","lon":"-111.9"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test", 1)
	_, err := client.Geocode(context.Background(), "first")
	require.NoError(t, err)

	// The second call must wait about a second, longer than the deadline allows
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Geocode(ctx, "second")
	assert.ErrorContains(t, err, "rate limiter")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, ctx.Err(), "refused before the deadline passed")
}
