package planner

import (
	"strings"

	"github.com/dpup/saferoute/server/internal/lib/geo"
)

// Location is either a literal coordinate or free text to geocode
type Location interface {
	isLocation()
}

// LiteralLocation is a coordinate given directly as "lon,lat"
type LiteralLocation struct {
	Coordinate geo.Coordinate
}

// TextLocation is a place name or address
type TextLocation struct {
	Query string
}

func (LiteralLocation) isLocation() {}
func (TextLocation) isLocation()    {}

// ParseLocation classifies raw input. Text shaped like "lon,lat" must be a
// valid coordinate; anything else non-empty is treated as a geocoding query.
func ParseLocation(side Side, raw string) (Location, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &ValidationError{Field: string(side), Reason: "location is required"}
	}

	c, ok, err := geo.ParseCoordinate(text)
	if ok {
		if err != nil {
			return nil, &ValidationError{Field: string(side), Reason: "coordinate out of range", Err: err}
		}
		return LiteralLocation{Coordinate: c}, nil
	}

	// Numeric-only text that failed to parse is a botched coordinate, not a
	// place name worth geocoding
	if strings.Contains(text, ",") && strings.IndexFunc(text, notNumeric) < 0 {
		return nil, &ValidationError{Field: string(side), Reason: "malformed coordinate, expected \"<longitude>,<latitude>\""}
	}

	return TextLocation{Query: text}, nil
}

func notNumeric(r rune) bool {
	return !strings.ContainsRune("0123456789.,+- ", r)
}
