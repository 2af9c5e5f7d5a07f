package cameras

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrNoSnapshot is returned before the first successful load
var ErrNoSnapshot = errors.New("no camera snapshot loaded")

// Source loads a complete snapshot from somewhere
type Source interface {
	Name() string
	Load(ctx context.Context) (*Snapshot, error)
}

// Store holds the current snapshot. Readers get an immutable pointer; a
// refresh swaps the pointer and never touches a published snapshot.
type Store struct {
	source  Source
	current atomic.Pointer[Snapshot]
}

// NewStore creates a new Store backed by source. Nothing is loaded until Refresh.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Snapshot returns the current snapshot
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Refresh loads a new snapshot from the source and publishes it. On failure
// the previous snapshot stays in place.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	if s.source == nil {
		return nil, errors.New("store has no source")
	}

	snap, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot from %s: %w", s.source.Name(), err)
	}

	s.current.Store(snap)
	return snap, nil
}

// Age reports how long ago the current snapshot was loaded
func (s *Store) Age(now time.Time) (time.Duration, bool) {
	snap := s.current.Load()
	if snap == nil {
		return 0, false
	}
	return now.Sub(snap.LoadedAt), true
}

// SourceName names the backing source
func (s *Store) SourceName() string {
	if s.source == nil {
		return "none"
	}
	return s.source.Name()
}
