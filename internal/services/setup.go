package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpup/saferoute/server/internal/cameras"
	"github.com/dpup/saferoute/server/internal/clients/google"
	"github.com/dpup/saferoute/server/internal/clients/osrm"
	"github.com/dpup/saferoute/server/internal/config"
	"github.com/dpup/saferoute/server/internal/lib/ranking"
	"github.com/dpup/saferoute/server/internal/lib/routing"
	"github.com/dpup/saferoute/server/internal/lib/safety"
	"github.com/dpup/saferoute/server/internal/planner"
)

// NewCameraSource opens the configured snapshot source. The returned func
// releases any connections it holds.
func NewCameraSource(ctx context.Context, cfg config.CamerasConfig) (cameras.Source, func(), error) {
	switch cfg.Source {
	case "file":
		return cameras.NewFileSource(cfg.File), func() {}, nil

	case "redis":
		source, err := cameras.NewRedisSource(cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return source, func() { _ = source.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: failed to connect: %w", err)
		}
		source := cameras.NewPostgresSource(pool)
		if err := source.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return source, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown camera source %q", cfg.Source)
	}
}

// NewRouteSource creates the configured route provider
func NewRouteSource(cfg *config.Config) planner.RouteSource {
	if cfg.Routing.Provider == "google" {
		return google.NewClient(cfg.Routing.Google.APIKey)
	}
	return osrm.NewClient(cfg.Routing.OSRMServers, cfg.Server.UserAgent)
}

// NewPlanner assembles matcher, scorer, ranker and planner from config
func NewPlanner(cfg *config.Config, geocoder planner.Geocoder, routes planner.RouteSource, snapshots planner.SnapshotProvider) *planner.Planner {
	matcher := routing.NewCameraMatcher(cfg.Planning.BufferMeters)
	scorer := safety.NewScorer(cfg.Planning.Weights)
	ranker := ranking.NewRanker(matcher, scorer).WithParallelism(cfg.Planning.Parallelism)
	return planner.New(geocoder, routes, snapshots, ranker, cfg.Planning.PlannerOptions())
}
