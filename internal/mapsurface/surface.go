package mapsurface

import (
	"github.com/oshokin/trackguard/internal/domain/tracking"
)

// Surface is the rendering capability. Every call is idempotent: repeating
// an identical call leaves the surface unchanged.
type Surface interface {
	AddOrMoveMarker(id string, at tracking.Coordinates, label string)
	RemoveMarker(id string)
	AddOrMoveCircle(id string, at tracking.Coordinates, radiusMeters float64, style CircleStyle)
	RemoveCircle(id string)
	ShowRoute(id string, waypoints []tracking.Coordinates, style RouteStyle)
	RemoveRoute(id string)
	SetViewport(at tracking.Coordinates, zoom int)
}

// CircleStyle describes how a circle is painted.
type CircleStyle struct {
	// Color is the stroke color.
	Color string `json:"color"`
	// FillColor is the fill color.
	FillColor string `json:"fillColor"`
	// FillOpacity is in [0, 1].
	FillOpacity float64 `json:"fillOpacity"`
}

// RouteStyle describes how a route polyline is painted.
type RouteStyle struct {
	// Color is the line color.
	Color string `json:"color"`
	// Weight is the line width in pixels.
	Weight int `json:"weight"`
	// SuppressItinerary hides any turn-by-turn panel the renderer would add.
	SuppressItinerary bool `json:"suppressItinerary"`
}

// Styles used by the three overlay owners.
//
//nolint:gochecknoglobals // Read-only style presets.
var (
	LiveCircleStyle   = CircleStyle{Color: "blue", FillColor: "#4a90e2", FillOpacity: 0.5}
	HazardStyle       = CircleStyle{Color: "red", FillColor: "#f03", FillOpacity: 0.3}
	AlertRouteStyle   = RouteStyle{Color: "#d62728", Weight: 5}
	HistoryRouteStyle = RouteStyle{Color: "#1f77b4", Weight: 4}
)
