package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500.0, cfg.Planning.BufferMeters)
	assert.Equal(t, 100.0, cfg.Planning.Weights.Base)
	assert.Equal(t, -30.0, cfg.Planning.Weights.Hazardous)
	assert.Equal(t, 0.30, cfg.Planning.Weights.CautionThreshold)
	assert.Equal(t, time.Minute, cfg.Cameras.RefreshInterval)

	opts := cfg.Planning.PlannerOptions()
	assert.Equal(t, 3, opts.DefaultAlternatives)
	assert.Equal(t, 90.0, opts.FallbackSpeedKmh)
	assert.Equal(t, 0, cfg.Planning.ResponseOptions().MaxHazardousLocations)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "saferoute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
planning:
  buffer_meters: 250
  weights:
    hazardous: -50
  max_hazardous_locations: 5
routing:
  provider: google
  google:
    api_key: test-key
cameras:
  source: redis
  redis_url: redis://localhost:6379/0
  refresh_interval: 30s
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 250.0, cfg.Planning.BufferMeters)
	assert.Equal(t, -50.0, cfg.Planning.Weights.Hazardous)
	assert.Equal(t, 100.0, cfg.Planning.Weights.Base, "unset fields keep defaults")
	assert.Equal(t, 5, cfg.Planning.MaxHazardousLocations)
	assert.Equal(t, "google", cfg.Routing.Provider)
	assert.Equal(t, 30*time.Second, cfg.Cameras.RefreshInterval)
	assert.Equal(t, "saferoute:classification_results", cfg.Cameras.RedisKey)
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	_, err = LoadFile(writeConfig(t, "planning: [not, a, map"))
	assert.ErrorContains(t, err, "failed to parse config")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown provider", "routing:\n  provider: mapquest\n", "unknown routing provider"},
		{"google without key", "routing:\n  provider: google\n", "api_key is required"},
		{"redis without url", "cameras:\n  source: redis\n", "redis_url is required"},
		{"postgres without url", "cameras:\n  source: postgres\n", "database_url is required"},
		{"unknown source", "cameras:\n  source: s3\n", "unknown camera source"},
		{"bad buffer", "planning:\n  buffer_meters: 0\n", "buffer_meters"},
		{"bad alternatives", "planning:\n  default_alternatives: 4\n", "alternatives"},
		{"bad speed", "planning:\n  fallback_speed_kmh: -1\n", "fallback_speed_kmh"},
		{"advisory without key", "advisory:\n  enabled: true\n", "advisory.api_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
