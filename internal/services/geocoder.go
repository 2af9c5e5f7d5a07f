package services

import (
	"context"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/saferoute/server/internal/cache"
	"github.com/dpup/saferoute/server/internal/lib/geo"
	"github.com/dpup/saferoute/server/internal/planner"
)

// CachedGeocoder remembers resolved place names. Failures are not cached.
type CachedGeocoder struct {
	geocoder planner.Geocoder
	cache    *cache.Cache
	ttl      time.Duration
}

// NewCachedGeocoder wraps geocoder with cache
func NewCachedGeocoder(geocoder planner.Geocoder, cache *cache.Cache, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{geocoder: geocoder, cache: cache, ttl: ttl}
}

// Geocode implements planner.Geocoder
func (g *CachedGeocoder) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	if coord, found, err := g.cache.GetGeocode(query); err == nil && found {
		return coord, nil
	}

	coord, err := g.geocoder.Geocode(ctx, query)
	if err != nil {
		return geo.Coordinate{}, err
	}

	if err := g.cache.SetGeocode(query, coord, g.ttl); err != nil {
		logging.Warnw(ctx, "Failed to cache geocode result", "query", query, "error", err)
	}
	return coord, nil
}
