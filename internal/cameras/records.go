package cameras

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dpup/saferoute/server/internal/lib/geo"
	"github.com/dpup/saferoute/server/internal/lib/routing"
)

// StatusSuccess marks a record whose image was classified
const StatusSuccess = "success"

// Record is one entry of a classification results document, keyed by camera id
type Record struct {
	Camera         CameraInfo      `json:"camera"`
	Status         string          `json:"status"`
	Classification *Classification `json:"classification"`
	Error          string          `json:"error,omitempty"`
}

// CameraInfo describes the physical camera
type CameraInfo struct {
	DisplayName string   `json:"display_name"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Classification is the classifier output for one camera image
type Classification struct {
	Condition   string  `json:"condition"`
	Confidence  float64 `json:"confidence"`
	SafetyLevel string  `json:"safety_level"`
	Timestamp   string  `json:"timestamp"`
}

// Results is a full classification results document
type Results map[string]Record

// ParseResults decodes a classification results document
func ParseResults(data []byte) (Results, error) {
	var results Results
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse classification results: %w", err)
	}
	return results, nil
}

// Observations converts records to camera observations. Records that failed
// classification or have no coordinates are skipped; the first are counted
// in failed.
func (r Results) Observations() (observations []routing.CameraObservation, failed int) {
	observations = make([]routing.CameraObservation, 0, len(r))
	for id, rec := range r {
		if rec.Status != StatusSuccess || rec.Classification == nil {
			failed++
			continue
		}
		obs, ok := rec.observation(id)
		if !ok {
			continue
		}
		observations = append(observations, obs)
	}
	return observations, failed
}

// FailedCamera is a camera whose latest image could not be classified. It
// is not scored but can still be looked up.
type FailedCamera struct {
	CameraID    string
	DisplayName string
	// Location is nil when the record carries no valid coordinates
	Location *geo.Coordinate
	Status   string
	Error    string
}

// Failures returns the records that failed classification
func (r Results) Failures() []FailedCamera {
	var failures []FailedCamera
	for id, rec := range r {
		if rec.Status == StatusSuccess && rec.Classification != nil {
			continue
		}
		status := rec.Status
		if status == "" {
			status = "unclassified"
		}
		failures = append(failures, FailedCamera{
			CameraID:    id,
			DisplayName: rec.Camera.DisplayName,
			Location:    rec.location(),
			Status:      status,
			Error:       rec.Error,
		})
	}
	return failures
}

// Snapshot builds a snapshot of the document, keeping failed records for lookup
func (r Results) Snapshot(sourceUpdatedAt, loadedAt time.Time) *Snapshot {
	observations, _ := r.Observations()
	return NewSnapshot(observations, 0, sourceUpdatedAt, loadedAt).withFailures(r.Failures())
}

func (rec Record) location() *geo.Coordinate {
	if rec.Camera.Latitude == nil || rec.Camera.Longitude == nil {
		return nil
	}
	location := geo.Coordinate{Longitude: *rec.Camera.Longitude, Latitude: *rec.Camera.Latitude}
	if !location.Valid() {
		return nil
	}
	return &location
}

func (rec Record) observation(id string) (routing.CameraObservation, bool) {
	location := rec.location()
	if location == nil {
		return routing.CameraObservation{}, false
	}

	name := rec.Camera.DisplayName
	if name == "" {
		name = "Unknown"
	}

	observedAt, _ := ParseTimestamp(rec.Classification.Timestamp)

	return routing.CameraObservation{
		CameraID:    id,
		Location:    *location,
		DisplayName: name,
		Condition:   rec.Classification.Condition,
		Confidence:  rec.Classification.Confidence,
		SafetyLevel: routing.ParseSafetyLevel(strings.ToLower(rec.Classification.SafetyLevel)),
		ObservedAt:  observedAt,
	}, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO 8601 timestamps. Zone-less
// values are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
