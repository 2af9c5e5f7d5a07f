// Package export renders planned routes for mapping tools.
package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-kml"

	"github.com/dpup/saferoute/server/internal/planner"
)

var (
	recommendedStyle = kml.SharedStyle("recommended",
		kml.LineStyle(kml.Color(color.RGBA{R: 0, G: 160, B: 60, A: 255}), kml.Width(5)),
	)
	alternativeStyle = kml.SharedStyle("alternative",
		kml.LineStyle(kml.Color(color.RGBA{R: 120, G: 120, B: 120, A: 200}), kml.Width(3)),
	)
	hazardStyle = kml.SharedStyle("hazard",
		kml.IconStyle(
			kml.Color(color.RGBA{R: 220, G: 30, B: 30, A: 255}),
			kml.Scale(1.2),
		),
	)
)

// WriteKML writes resp as a KML document with one folder per route. Each
// folder holds the route line and a placemark per hazardous camera.
func WriteKML(w io.Writer, title string, resp planner.Response) error {
	doc := kml.Document(
		kml.Name(title),
		kml.Open(true),
		recommendedStyle,
		alternativeStyle,
		hazardStyle,
	)

	for _, route := range resp.Routes {
		doc.Add(routeFolder(route))
	}

	return kml.KML(doc).WriteIndent(w, "", "  ")
}

func routeFolder(route planner.RouteResponse) *kml.CompoundElement {
	style := alternativeStyle
	name := fmt.Sprintf("Route %d", route.RouteIndex+1)
	if route.IsRecommended {
		style = recommendedStyle
		name += " (recommended)"
	}

	description := fmt.Sprintf("%.2f km, %.1f min. Safety %s, score %.1f, %d cameras.",
		route.DistanceKm, route.DurationMin, route.Safety.Rating, route.Safety.Score, route.CamerasMonitored)
	if route.Degraded {
		description += " Straight-line estimate."
	}

	folder := kml.Folder(
		kml.Name(name),
		kml.Placemark(
			kml.Name(name),
			kml.Description(description),
			kml.StyleURL(style.URL()),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(lineCoordinates(route)...),
			),
		),
	)

	for _, h := range route.HazardousLocations {
		folder.Add(kml.Placemark(
			kml.Name(h.Name),
			kml.Description(fmt.Sprintf("%s (%.0f%% confidence), %.3f km from route",
				h.Classification.Condition, h.Classification.Confidence*100, h.DistanceKm)),
			kml.StyleURL(hazardStyle.URL()),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: h.Longitude, Lat: h.Latitude})),
		))
	}

	return folder
}

func lineCoordinates(route planner.RouteResponse) []kml.Coordinate {
	if route.Geometry == nil {
		return nil
	}
	line, ok := route.Geometry.Coordinates.(orb.LineString)
	if !ok {
		return nil
	}
	coords := make([]kml.Coordinate, len(line))
	for i, p := range line {
		coords[i] = kml.Coordinate{Lon: p.Lon(), Lat: p.Lat()}
	}
	return coords
}
