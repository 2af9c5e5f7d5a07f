package planner

import (
	"fmt"
)

// ValidationError reports malformed request input or structurally invalid routes
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Side identifies which end of the trip a location belongs to
type Side string

const (
	Origin      Side = "origin"
	Destination Side = "destination"
)

// GeocodeError reports a free-text location that could not be resolved
type GeocodeError struct {
	Side  Side
	Query string
	Err   error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("could not geocode %s %q: %v", e.Side, e.Query, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

// NoRouteError reports that no route could be produced between the endpoints
type NoRouteError struct {
	Reason string
}

func (e *NoRouteError) Error() string {
	return "no route found: " + e.Reason
}

// SnapshotUnavailableError reports that no camera snapshot has been loaded
type SnapshotUnavailableError struct {
	Err error
}

func (e *SnapshotUnavailableError) Error() string {
	if e.Err == nil {
		return "camera snapshot unavailable"
	}
	return fmt.Sprintf("camera snapshot unavailable: %v", e.Err)
}

func (e *SnapshotUnavailableError) Unwrap() error { return e.Err }

// TimeoutError reports that the request was cancelled or ran out of time
type TimeoutError struct {
	Stage string
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("planning timed out during %s: %v", e.Stage, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
