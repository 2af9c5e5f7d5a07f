package advisory

import (
	"context"
	"time"

	"github.com/dpup/prefab/logging"
)

// DefaultCacheTTL bounds how long an advisory is reused
const DefaultCacheTTL = 15 * time.Minute

// Cache stores advisories by content hash
type Cache interface {
	SetAdvisory(contentHash string, advisory Advisory, ttl time.Duration) error
	GetAdvisory(contentHash string) (Advisory, bool, error)
}

// CachedAdvisor wraps an Advisor with content-based caching
type CachedAdvisor struct {
	advisor Advisor
	cache   Cache
	hasher  *ContentHasher
	ttl     time.Duration
}

// NewCachedAdvisor creates an advisor with content-based caching
func NewCachedAdvisor(advisor Advisor, cache Cache, ttl time.Duration) *CachedAdvisor {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedAdvisor{
		advisor: advisor,
		cache:   cache,
		hasher:  NewContentHasher(),
		ttl:     ttl,
	}
}

// Advise returns a cached advisory for identical content, otherwise asks the
// wrapped advisor and caches the result
func (c *CachedAdvisor) Advise(ctx context.Context, summary RouteSummary) (Advisory, error) {
	contentHash := c.hasher.HashSummary(summary)

	if cached, found, err := c.cache.GetAdvisory(contentHash); err == nil && found {
		logging.Infow(ctx, "Advisory cache hit", "content_hash", contentHash[:8])
		return cached, nil
	}

	advisory, err := c.advisor.Advise(ctx, summary)
	if err != nil {
		logging.Warnw(ctx, "Advisory generation failed", "content_hash", contentHash[:8], "error", err)
		return advisory, err
	}

	// Don't fail the request if caching fails
	if err := c.cache.SetAdvisory(contentHash, advisory, c.ttl); err != nil {
		logging.Warnw(ctx, "Failed to cache advisory", "error", err)
	}

	return advisory, nil
}

// HealthCheck delegates to underlying advisor
func (c *CachedAdvisor) HealthCheck(ctx context.Context) error {
	return c.advisor.HealthCheck(ctx)
}
