package osrm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/saferoute/server/internal/lib/geo"
)

var (
	saltLakeCity = geo.Coordinate{Longitude: -111.891, Latitude: 40.7608}
	parkCity     = geo.Coordinate{Longitude: -111.498, Latitude: 40.6461}
)

const twoRoutes = `{
	"code": "Ok",
	"routes": [
		{"distance": 45870, "duration": 1920, "geometry": {"type": "LineString", "coordinates": [[-111.891, 40.7608], [-111.63, 40.754], [-111.498, 40.6461]]}},
		{"distance": 52300, "duration": 2700, "geometry": {"type": "LineString", "coordinates": [[-111.891, 40.7608], [-111.498, 40.6461]]}}
	]
}`

func osrmServer(t *testing.T, status int, body string, hits *int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		assert.Equal(t, "/route/v1/driving/-111.891,40.7608;-111.498,40.6461", r.URL.Path)
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "saferoute-test", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchRoutes(t *testing.T) {
	var hits int
	server := osrmServer(t, http.StatusOK, twoRoutes, &hits)

	routes, err := NewClient([]string{server.URL + "/"}, "saferoute-test").FetchRoutes(context.Background(), saltLakeCity, parkCity, 3)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.InDelta(t, 45.87, routes[0].DistanceKm, 1e-9)
	assert.InDelta(t, 32.0, routes[0].DurationMin, 1e-9)
	assert.Equal(t, saltLakeCity, routes[0].Points[0])
	assert.Len(t, routes[1].Points, 2)
	assert.Equal(t, 1, hits)
}

func TestFetchRoutes_Truncates(t *testing.T) {
	var hits int
	server := osrmServer(t, http.StatusOK, twoRoutes, &hits)

	routes, err := NewClient([]string{server.URL}, "saferoute-test").FetchRoutes(context.Background(), saltLakeCity, parkCity, 1)
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

func TestFetchRoutes_FailsOver(t *testing.T) {
	var downHits, upHits int
	down := osrmServer(t, http.StatusBadGateway, "<html>bad gateway</html>", &downHits)
	up := osrmServer(t, http.StatusOK, twoRoutes, &upHits)

	routes, err := NewClient([]string{down.URL, up.URL}, "saferoute-test").FetchRoutes(context.Background(), saltLakeCity, parkCity, 3)
	require.NoError(t, err)
	assert.Len(t, routes, 2)
	assert.Equal(t, 1, downHits)
	assert.Equal(t, 1, upHits)
}

func TestFetchRoutes_NoRoute(t *testing.T) {
	var hits int
	server := osrmServer(t, http.StatusBadRequest, `{"code":"NoRoute","message":"Impossible route between points"}`, &hits)

	routes, err := NewClient([]string{server.URL}, "saferoute-test").FetchRoutes(context.Background(), saltLakeCity, parkCity, 3)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestFetchRoutes_AllFail(t *testing.T) {
	var aHits, bHits int
	a := osrmServer(t, http.StatusBadRequest, `{"code":"InvalidQuery","message":"Query string malformed"}`, &aHits)
	b := osrmServer(t, http.StatusOK, `{"code":"Ok","routes":[{"distance":1,"duration":1,"geometry":{"type":"Point","coordinates":[0,0]}}]}`, &bHits)

	_, err := NewClient([]string{a.URL, b.URL}, "saferoute-test").FetchRoutes(context.Background(), saltLakeCity, parkCity, 3)
	require.ErrorIs(t, err, ErrAllServersFailed)
	assert.ErrorContains(t, err, "InvalidQuery")
	assert.ErrorContains(t, err, "unexpected geometry type")
}

func TestFetchRoutes_Cancelled(t *testing.T) {
	var hits int
	server := osrmServer(t, http.StatusOK, twoRoutes, &hits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient([]string{server.URL, server.URL}, "saferoute-test").FetchRoutes(ctx, saltLakeCity, parkCity, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, hits)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(nil, "")
	assert.Equal(t, DefaultServers, c.servers)
}
