package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dpup/saferoute/server/internal/cameras"
	"github.com/dpup/saferoute/server/internal/lib/routing"
	"github.com/dpup/saferoute/server/internal/lib/safety"
	"github.com/dpup/saferoute/server/internal/planner"
)

// Config represents the complete application configuration. The server reads
// each section from prefab's config (prefab.yaml plus PF__ environment
// variables); the CLI reads the same shape from a YAML file.
type Config struct {
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	Planning  PlanningConfig  `koanf:"planning" yaml:"planning"`
	Routing   RoutingConfig   `koanf:"routing" yaml:"routing"`
	Geocoding GeocodingConfig `koanf:"geocoding" yaml:"geocoding"`
	Cameras   CamerasConfig   `koanf:"cameras" yaml:"cameras"`
	Advisory  AdvisoryConfig  `koanf:"advisory" yaml:"advisory"`
}

// ServerConfig holds settings for the HTTP and gRPC surfaces
type ServerConfig struct {
	// UserAgent is sent to public OSM services, which require one
	UserAgent      string        `koanf:"userAgent" yaml:"user_agent"`
	RequestTimeout time.Duration `koanf:"requestTimeout" yaml:"request_timeout"`
}

// PlanningConfig tunes matching, scoring and response rendering
type PlanningConfig struct {
	BufferMeters          float64        `koanf:"bufferMeters" yaml:"buffer_meters"`
	Weights               safety.Weights `koanf:"weights" yaml:"weights"`
	DefaultAlternatives   int            `koanf:"defaultAlternatives" yaml:"default_alternatives"`
	MaxAlternatives       int            `koanf:"maxAlternatives" yaml:"max_alternatives"`
	FallbackSpeedKmh      float64        `koanf:"fallbackSpeedKmh" yaml:"fallback_speed_kmh"`
	MaxHazardousLocations int            `koanf:"maxHazardousLocations" yaml:"max_hazardous_locations"`
	Parallelism           int            `koanf:"parallelism" yaml:"parallelism"`
}

// RoutingConfig selects and configures the route source
type RoutingConfig struct {
	// Provider is "osrm" or "google"
	Provider    string       `koanf:"provider" yaml:"provider"`
	OSRMServers []string     `koanf:"osrmServers" yaml:"osrm_servers"`
	Google      GoogleConfig `koanf:"google" yaml:"google"`
}

// GoogleConfig holds Google Routes API settings
type GoogleConfig struct {
	APIKey string `koanf:"apiKey" yaml:"api_key"`
}

// GeocodingConfig configures place-name resolution
type GeocodingConfig struct {
	BaseURL           string        `koanf:"baseUrl" yaml:"base_url"`
	RequestsPerSecond float64       `koanf:"requestsPerSecond" yaml:"requests_per_second"`
	CacheTTL          time.Duration `koanf:"cacheTtl" yaml:"cache_ttl"`
}

// CamerasConfig selects where camera snapshots come from
type CamerasConfig struct {
	// Source is "file", "redis" or "postgres"
	Source          string        `koanf:"source" yaml:"source"`
	File            string        `koanf:"file" yaml:"file"`
	RedisURL        string        `koanf:"redisUrl" yaml:"redis_url"`
	RedisKey        string        `koanf:"redisKey" yaml:"redis_key"`
	DatabaseURL     string        `koanf:"databaseUrl" yaml:"database_url"`
	RefreshInterval time.Duration `koanf:"refreshInterval" yaml:"refresh_interval"`
}

// AdvisoryConfig holds OpenAI settings for trip advisories
type AdvisoryConfig struct {
	Enabled  bool          `koanf:"enabled" yaml:"enabled"`
	APIKey   string        `koanf:"apiKey" yaml:"api_key"`
	Model    string        `koanf:"model" yaml:"model"`
	BaseURL  string        `koanf:"baseUrl" yaml:"base_url"`
	CacheTTL time.Duration `koanf:"cacheTtl" yaml:"cache_ttl"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			UserAgent:      "saferoute/1.0",
			RequestTimeout: 30 * time.Second,
		},
		Planning: PlanningConfig{
			BufferMeters:        routing.DefaultBufferMeters,
			Weights:             safety.DefaultWeights(),
			DefaultAlternatives: 3,
			MaxAlternatives:     3,
			FallbackSpeedKmh:    90,
			Parallelism:         4,
		},
		Routing: RoutingConfig{
			Provider: "osrm",
		},
		Geocoding: GeocodingConfig{
			BaseURL:           "https://nominatim.openstreetmap.org",
			RequestsPerSecond: 1,
			CacheTTL:          24 * time.Hour,
		},
		Cameras: CamerasConfig{
			Source:          "file",
			File:            "data/classification_results.json",
			RedisKey:        cameras.DefaultRedisKey,
			RefreshInterval: time.Minute,
		},
		Advisory: AdvisoryConfig{
			Model:    "gpt-4o-mini",
			CacheTTL: 15 * time.Minute,
		},
	}
}

// LoadFile reads a YAML config file over the defaults
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a request
func (c *Config) Validate() error {
	switch c.Routing.Provider {
	case "osrm":
	case "google":
		if c.Routing.Google.APIKey == "" {
			return fmt.Errorf("routing.google.api_key is required for the google provider")
		}
	default:
		return fmt.Errorf("unknown routing provider %q", c.Routing.Provider)
	}

	switch c.Cameras.Source {
	case "file":
		if c.Cameras.File == "" {
			return fmt.Errorf("cameras.file is required for the file source")
		}
	case "redis":
		if c.Cameras.RedisURL == "" {
			return fmt.Errorf("cameras.redis_url is required for the redis source")
		}
	case "postgres":
		if c.Cameras.DatabaseURL == "" {
			return fmt.Errorf("cameras.database_url is required for the postgres source")
		}
	default:
		return fmt.Errorf("unknown camera source %q", c.Cameras.Source)
	}

	if c.Planning.BufferMeters <= 0 {
		return fmt.Errorf("planning.buffer_meters must be positive")
	}
	if c.Planning.MaxAlternatives < 1 || c.Planning.DefaultAlternatives < 1 ||
		c.Planning.DefaultAlternatives > c.Planning.MaxAlternatives {
		return fmt.Errorf("planning alternatives must satisfy 1 <= default <= max")
	}
	if c.Planning.FallbackSpeedKmh <= 0 {
		return fmt.Errorf("planning.fallback_speed_kmh must be positive")
	}
	if c.Advisory.Enabled && c.Advisory.APIKey == "" {
		return fmt.Errorf("advisory.api_key is required when advisories are enabled")
	}
	return nil
}

// PlannerOptions converts the planning section to planner options
func (p PlanningConfig) PlannerOptions() planner.Options {
	return planner.Options{
		DefaultAlternatives: p.DefaultAlternatives,
		MaxAlternatives:     p.MaxAlternatives,
		FallbackSpeedKmh:    p.FallbackSpeedKmh,
	}
}

// ResponseOptions converts the planning section to response options
func (p PlanningConfig) ResponseOptions() planner.ResponseOptions {
	return planner.ResponseOptions{MaxHazardousLocations: p.MaxHazardousLocations}
}
