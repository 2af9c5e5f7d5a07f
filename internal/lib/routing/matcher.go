package routing

import (
	"errors"

	"github.com/dpup/saferoute/server/internal/lib/geo"
)

// CameraMatcher selects the cameras relevant to a route
type CameraMatcher interface {
	// Match returns cameras within the buffer of route, in input order
	Match(route Route, routeIndex int, cameras []CameraObservation) ([]Match, error)

	// Buffer returns the inclusion distance in meters
	Buffer() float64
}

// cameraMatcher implements the CameraMatcher interface
type cameraMatcher struct {
	bufferMeters float64
}

// NewCameraMatcher creates a new CameraMatcher with the given buffer in meters.
// A non-positive buffer selects DefaultBufferMeters.
func NewCameraMatcher(bufferMeters float64) CameraMatcher {
	if bufferMeters <= 0 {
		bufferMeters = DefaultBufferMeters
	}
	return &cameraMatcher{bufferMeters: bufferMeters}
}

func (m *cameraMatcher) Buffer() float64 {
	return m.bufferMeters
}

// Match filters cameras by distance to the route polyline
func (m *cameraMatcher) Match(route Route, routeIndex int, cameras []CameraObservation) ([]Match, error) {
	if err := route.Validate(); err != nil {
		var invalid *InvalidRouteError
		if errors.As(err, &invalid) {
			invalid.RouteIndex = routeIndex
		}
		return nil, err
	}

	matches := []Match{}
	if len(cameras) == 0 {
		return matches, nil
	}

	// Cheap rejection before the per-segment scan. The margin is padded so a
	// camera just inside the buffer is never rejected by the box.
	box, useBox := geo.Bounds(route.Points, m.bufferMeters*1.1+10)

	for _, camera := range cameras {
		if !camera.Location.Valid() {
			continue
		}
		if useBox && !box.Contains(camera.Location) {
			continue
		}

		distance, err := geo.PointToPolyline(camera.Location, route.Points)
		if err != nil {
			continue
		}

		if distance <= m.bufferMeters {
			matches = append(matches, Match{
				Camera:           camera,
				RouteIndex:       routeIndex,
				DistanceToRouteM: distance,
			})
		}
	}

	return matches, nil
}
