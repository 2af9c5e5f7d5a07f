package services

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/saferoute/server/internal/cameras"
	"github.com/dpup/saferoute/server/internal/lib/routing"
	"github.com/dpup/saferoute/server/internal/metrics"
)

// refreshTimeout bounds a single snapshot load
const refreshTimeout = 30 * time.Second

// PeriodicRefreshService reloads the camera snapshot on a fixed interval.
// A failed reload keeps serving the previous snapshot.
type PeriodicRefreshService struct {
	store    *cameras.Store
	interval time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewPeriodicRefreshService creates a new periodic refresh service
func NewPeriodicRefreshService(store *cameras.Store, interval time.Duration) *PeriodicRefreshService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PeriodicRefreshService{
		store:    store,
		interval: interval,
	}
}

// StartPeriodicRefresh begins refreshing in the background
func (p *PeriodicRefreshService) StartPeriodicRefresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})

	log.Printf("Starting camera snapshot refresh every %v from %s", p.interval, p.store.SourceName())
	go p.refreshLoop(ctx, p.stopChan)

	return nil
}

// Stop gracefully stops the periodic refresh
func (p *PeriodicRefreshService) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	close(p.stopChan)
	log.Printf("Stopped periodic refresh service")
}

// IsRunning returns whether periodic refresh is active
func (p *PeriodicRefreshService) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RefreshOnce loads and publishes a snapshot now
func (p *PeriodicRefreshService) RefreshOnce(ctx context.Context) error {
	refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	source := p.store.SourceName()
	snap, err := p.store.Refresh(refreshCtx)
	if err != nil {
		metrics.SnapshotRefreshes.WithLabelValues(source, "error").Inc()
		logging.Warnw(ctx, "Camera snapshot refresh failed", "source", source, "error", err)
		return err
	}

	metrics.SnapshotRefreshes.WithLabelValues(source, "ok").Inc()
	metrics.SnapshotLoadedAt.Set(float64(snap.LoadedAt.Unix()))
	stats := snap.Stats()
	for _, level := range []routing.SafetyLevel{routing.Safe, routing.Caution, routing.Hazardous, routing.Unknown} {
		metrics.SnapshotCameras.WithLabelValues(string(level)).Set(float64(stats.SafetyLevelCounts[level]))
	}

	logging.Infow(ctx, "Camera snapshot refreshed",
		"source", source,
		"version", snap.Version,
		"cameras", stats.Successful,
		"failed", stats.Failed,
		"hazardous", stats.SafetyLevelCounts[routing.Hazardous])
	return nil
}

func (p *PeriodicRefreshService) refreshLoop(ctx context.Context, stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Periodic refresh: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Periodic refresh stopping due to context cancellation")
			return
		case <-stop:
			return
		case <-ticker.C:
			_ = p.RefreshOnce(ctx)
		}
	}
}
