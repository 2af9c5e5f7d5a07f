package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/saferoute/server/internal/cameras"
)

type countingSource struct {
	loads atomic.Int32
	fail  atomic.Bool
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Load(ctx context.Context) (*cameras.Snapshot, error) {
	c.loads.Add(1)
	if c.fail.Load() {
		return nil, errors.New("source offline")
	}
	return testSnapshot(), nil
}

func TestRefreshOnce(t *testing.T) {
	source := &countingSource{}
	store := cameras.NewStore(source)
	refresher := NewPeriodicRefreshService(store, time.Hour)

	require.NoError(t, refresher.RefreshOnce(context.Background()))
	first, err := store.Snapshot(context.Background())
	require.NoError(t, err)

	source.fail.Store(true)
	assert.Error(t, refresher.RefreshOnce(context.Background()))

	current, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, current, "failed refresh keeps the previous snapshot")
}

func TestPeriodicRefresh_StartStop(t *testing.T) {
	source := &countingSource{}
	refresher := NewPeriodicRefreshService(cameras.NewStore(source), 5*time.Millisecond)

	require.NoError(t, refresher.StartPeriodicRefresh(context.Background()))
	require.NoError(t, refresher.StartPeriodicRefresh(context.Background()), "second start is a no-op")
	assert.True(t, refresher.IsRunning())

	assert.Eventually(t, func() bool { return source.loads.Load() >= 2 }, time.Second, 5*time.Millisecond)

	refresher.Stop()
	refresher.Stop()
	assert.False(t, refresher.IsRunning())

	// Allow an in-flight tick to finish, then confirm loading has stopped
	time.Sleep(20 * time.Millisecond)
	stopped := source.loads.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, source.loads.Load())
}

func TestPeriodicRefresh_ContextCancel(t *testing.T) {
	source := &countingSource{}
	refresher := NewPeriodicRefreshService(cameras.NewStore(source), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, refresher.StartPeriodicRefresh(ctx))
	assert.Eventually(t, func() bool { return source.loads.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	time.Sleep(20 * time.Millisecond)
	stopped := source.loads.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, source.loads.Load())
}
