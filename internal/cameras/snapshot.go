package cameras

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dpup/saferoute/server/internal/lib/routing"
)

// Snapshot is an immutable view of every camera's latest classification.
// Cameras is sorted by CameraID; callers must not modify it.
type Snapshot struct {
	Version         string
	LoadedAt        time.Time
	SourceUpdatedAt time.Time
	Cameras         []routing.CameraObservation
	// Failed counts source records skipped because classification failed
	Failed int
	// Failures holds those records when the source provides them, sorted by
	// CameraID
	Failures []FailedCamera
}

// NewSnapshot builds a snapshot from observations, assigning a fresh version
func NewSnapshot(observations []routing.CameraObservation, failed int, sourceUpdatedAt, loadedAt time.Time) *Snapshot {
	sorted := make([]routing.CameraObservation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CameraID < sorted[j].CameraID
	})

	return &Snapshot{
		Version:         uuid.NewString(),
		LoadedAt:        loadedAt,
		SourceUpdatedAt: sourceUpdatedAt,
		Cameras:         sorted,
		Failed:          failed,
	}
}

// withFailures attaches failed records before the snapshot is published.
// Failed becomes their count.
func (s *Snapshot) withFailures(failures []FailedCamera) *Snapshot {
	sorted := make([]FailedCamera, len(failures))
	copy(sorted, failures)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CameraID < sorted[j].CameraID
	})
	s.Failures = sorted
	s.Failed = len(sorted)
	return s
}

// FailedCamera looks up a camera whose classification failed
func (s *Snapshot) FailedCamera(id string) (FailedCamera, bool) {
	i := sort.Search(len(s.Failures), func(i int) bool {
		return s.Failures[i].CameraID >= id
	})
	if i < len(s.Failures) && s.Failures[i].CameraID == id {
		return s.Failures[i], true
	}
	return FailedCamera{}, false
}

// Camera looks up a single camera by id
func (s *Snapshot) Camera(id string) (routing.CameraObservation, bool) {
	i := sort.Search(len(s.Cameras), func(i int) bool {
		return s.Cameras[i].CameraID >= id
	})
	if i < len(s.Cameras) && s.Cameras[i].CameraID == id {
		return s.Cameras[i], true
	}
	return routing.CameraObservation{}, false
}

// Stats summarises a snapshot
type Stats struct {
	TotalCameras      int
	Successful        int
	Failed            int
	ConditionCounts   map[string]int
	SafetyLevelCounts map[routing.SafetyLevel]int
}

// Stats counts cameras by condition and safety level
func (s *Snapshot) Stats() Stats {
	stats := Stats{
		TotalCameras:      len(s.Cameras) + s.Failed,
		Successful:        len(s.Cameras),
		Failed:            s.Failed,
		ConditionCounts:   map[string]int{},
		SafetyLevelCounts: map[routing.SafetyLevel]int{},
	}
	for _, c := range s.Cameras {
		stats.ConditionCounts[c.Condition]++
		stats.SafetyLevelCounts[c.SafetyLevel]++
	}
	return stats
}

// ByLevel returns cameras with the given safety level, in id order
func (s *Snapshot) ByLevel(level routing.SafetyLevel) []routing.CameraObservation {
	out := []routing.CameraObservation{}
	for _, c := range s.Cameras {
		if c.SafetyLevel == level {
			out = append(out, c)
		}
	}
	return out
}
