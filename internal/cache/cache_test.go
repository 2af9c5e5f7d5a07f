package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/saferoute/server/internal/lib/advisory"
	"github.com/dpup/saferoute/server/internal/lib/geo"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)}
	c := NewCache()
	c.now = clock.Now
	return c, clock
}

func TestCache_SetGet(t *testing.T) {
	c, clock := newTestCache()

	require.NoError(t, c.Set("k", map[string]int{"a": 1}, time.Minute, "test"))

	var got map[string]int
	found, err := c.Get("k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, got["a"])
	assert.Equal(t, 1, c.Stats().FreshEntries)

	clock.t = clock.t.Add(2 * time.Minute)
	found, err = c.Get("k", &got)
	require.NoError(t, err)
	assert.False(t, found, "expired entries are not returned")
	assert.Equal(t, 1, c.Stats().StaleEntries, "expired entries stay until cleanup")
	assert.Zero(t, c.Stats().FreshEntries)
}

func TestCache_GetWrongType(t *testing.T) {
	c, _ := newTestCache()
	require.NoError(t, c.Set("k", "text", time.Minute, "test"))

	var n int
	found, err := c.Get("k", &n)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestCache_SetUnmarshalable(t *testing.T) {
	c, _ := newTestCache()
	assert.Error(t, c.Set("k", make(chan int), time.Minute, "test"))
}

func TestCache_StatsAndCleanup(t *testing.T) {
	c, clock := newTestCache()
	require.NoError(t, c.Set("short", 1, time.Minute, "test"))
	clock.t = clock.t.Add(30 * time.Second)
	require.NoError(t, c.Set("long", 2, time.Hour, "test"))
	clock.t = clock.t.Add(time.Minute)

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
	assert.Equal(t, 1, stats.StaleEntries)
	assert.True(t, stats.OldestEntry.Before(stats.NewestEntry))

	assert.Equal(t, 1, c.CleanupStale())
	assert.Equal(t, []string{"long"}, c.Keys())

	c.Delete("long")
	assert.Empty(t, c.Keys())
}

func TestCache_PeriodicCleanupStops(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Set("gone", 1, time.Nanosecond, "test"))

	ctx, cancel := context.WithCancel(context.Background())
	c.StartPeriodicCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return len(c.Keys()) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestCache_Advisory(t *testing.T) {
	c, clock := newTestCache()
	a := advisory.Advisory{Headline: "Snow on Parleys Summit", Recommendation: "delay_travel"}

	_, found, err := c.GetAdvisory("abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetAdvisory("abc", a, 15*time.Minute))
	got, found, err := c.GetAdvisory("abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, a.Headline, got.Headline)
	assert.Equal(t, a.Recommendation, got.Recommendation)

	clock.t = clock.t.Add(16 * time.Minute)
	_, found, _ = c.GetAdvisory("abc")
	assert.False(t, found)
}

func TestCache_Geocode(t *testing.T) {
	c, _ := newTestCache()
	parkCity := geo.Coordinate{Longitude: -111.4980, Latitude: 40.6461}

	require.NoError(t, c.SetGeocode("Park City, UT", parkCity, time.Hour))

	got, found, err := c.GetGeocode("  park city,   ut ")
	require.NoError(t, err)
	assert.True(t, found, "queries are normalized")
	assert.Equal(t, parkCity, got)
}
