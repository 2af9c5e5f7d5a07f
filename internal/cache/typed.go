package cache

import (
	"strings"
	"time"

	"github.com/dpup/saferoute/server/internal/lib/advisory"
	"github.com/dpup/saferoute/server/internal/lib/geo"
)

const (
	advisoryPrefix = "advisory:"
	geocodePrefix  = "geocode:"
)

// SetAdvisory caches an advisory under its content hash
func (c *Cache) SetAdvisory(contentHash string, a advisory.Advisory, ttl time.Duration) error {
	return c.Set(advisoryPrefix+contentHash, a, ttl, "advisory")
}

// GetAdvisory retrieves a cached advisory by content hash
func (c *Cache) GetAdvisory(contentHash string) (advisory.Advisory, bool, error) {
	var a advisory.Advisory
	found, err := c.Get(advisoryPrefix+contentHash, &a)
	if err != nil || !found {
		return advisory.Advisory{}, false, err
	}
	return a, true, nil
}

// SetGeocode caches a resolved place name
func (c *Cache) SetGeocode(query string, coord geo.Coordinate, ttl time.Duration) error {
	return c.Set(geocodeKey(query), coord, ttl, "geocode")
}

// GetGeocode looks up a previously resolved place name
func (c *Cache) GetGeocode(query string) (geo.Coordinate, bool, error) {
	var coord geo.Coordinate
	found, err := c.Get(geocodeKey(query), &coord)
	if err != nil || !found {
		return geo.Coordinate{}, false, err
	}
	return coord, true, nil
}

func geocodeKey(query string) string {
	return geocodePrefix + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

var _ advisory.Cache = (*Cache)(nil)
