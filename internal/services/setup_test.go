package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/saferoute/server/internal/cameras"
	"github.com/dpup/saferoute/server/internal/clients/google"
	"github.com/dpup/saferoute/server/internal/clients/osrm"
	"github.com/dpup/saferoute/server/internal/config"
)

func TestNewCameraSource(t *testing.T) {
	cfg := config.DefaultConfig().Cameras

	source, closeFn, err := NewCameraSource(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &cameras.FileSource{}, source)

	cfg.Source = "redis"
	cfg.RedisURL = "redis://localhost:6379/0"
	source, closeFn, err = NewCameraSource(context.Background(), cfg)
	require.NoError(t, err, "redis clients connect lazily")
	defer closeFn()
	assert.Equal(t, "redis:"+cameras.DefaultRedisKey, source.Name())

	cfg.RedisURL = "not a url"
	_, _, err = NewCameraSource(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Source = "ftp"
	_, _, err = NewCameraSource(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown camera source")
}

func TestNewRouteSource(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.IsType(t, &osrm.Client{}, NewRouteSource(cfg))

	cfg.Routing.Provider = "google"
	cfg.Routing.Google.APIKey = "k"
	assert.IsType(t, &google.Client{}, NewRouteSource(cfg))
}
