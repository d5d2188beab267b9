package mapsurface

import (
	"slices"
	"sync"

	"github.com/oshokin/trackguard/internal/domain/tracking"
)

// SlotIDs names the overlays a slot owns on the surface. An empty ID means
// the slot never draws that kind of overlay.
type SlotIDs struct {
	Marker string
	Circle string
	Route  string
}

// Fixed overlay slots. Each owner draws only through its own slot.
//
//nolint:gochecknoglobals // Read-only slot layouts.
var (
	LiveSlotIDs    = SlotIDs{Marker: "live-marker", Circle: "live-circle"}
	AlertSlotIDs   = SlotIDs{Marker: "alert-marker", Circle: "alert-circle", Route: "alert-route"}
	HistorySlotIDs = SlotIDs{Marker: "history-marker", Route: "history-route"}
)

// Marker is a marker to draw.
type Marker struct {
	At    tracking.Coordinates
	Label string
}

// Circle is a circle to draw.
type Circle struct {
	At           tracking.Coordinates
	RadiusMeters float64
	Style        CircleStyle
}

// Overlay is the full content of a slot. A nil part is left empty.
type Overlay struct {
	Marker *Marker
	Circle *Circle
	Route  []tracking.Coordinates
}

// Slot owns a fixed set of overlays on a surface and keeps track of what is
// drawn. Every method holds the slot lock, so a replace is never interleaved
// with another change to the same slot.
type Slot struct {
	// surface receives the draw commands.
	surface Surface
	// ids are the overlay identifiers owned by this slot.
	ids SlotIDs
	// routeStyle paints the route of this slot.
	routeStyle RouteStyle

	// mu serialises changes to the slot.
	mu sync.Mutex
	// hasMarker, hasCircle and hasRoute track what is on the surface.
	hasMarker, hasCircle, hasRoute bool
}

// NewSlot creates an empty slot.
func NewSlot(surface Surface, ids SlotIDs, routeStyle RouteStyle) *Slot {
	return &Slot{
		surface:    surface,
		ids:        ids,
		routeStyle: routeStyle,
	}
}

// Replace clears everything the slot has drawn and draws o.
func (s *Slot) Replace(o Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.drawLocked(o)
}

// Update draws the non-nil parts of o over the current content, moving
// existing overlays in place. Parts left nil keep their current state.
func (s *Slot) Update(o Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drawLocked(o)
}

// ReplaceRoute swaps the route of the slot and keeps marker and circle.
func (s *Slot) ReplaceRoute(waypoints []tracking.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeRouteLocked()
	s.drawLocked(Overlay{Route: waypoints})
}

// Clear removes everything the slot has drawn. Clearing an empty slot is a no-op.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
}

// HasRoute reports whether the slot currently shows a route.
func (s *Slot) HasRoute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hasRoute
}

// Empty reports whether the slot has nothing on the surface.
func (s *Slot) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return !s.hasMarker && !s.hasCircle && !s.hasRoute
}

func (s *Slot) drawLocked(o Overlay) {
	if o.Marker != nil && s.ids.Marker != "" {
		s.surface.AddOrMoveMarker(s.ids.Marker, o.Marker.At, o.Marker.Label)
		s.hasMarker = true
	}

	if o.Circle != nil && s.ids.Circle != "" {
		s.surface.AddOrMoveCircle(s.ids.Circle, o.Circle.At, o.Circle.RadiusMeters, o.Circle.Style)
		s.hasCircle = true
	}

	if len(o.Route) > 0 && s.ids.Route != "" {
		s.surface.ShowRoute(s.ids.Route, slices.Clone(o.Route), s.routeStyle)
		s.hasRoute = true
	}
}

func (s *Slot) clearLocked() {
	if s.hasMarker {
		s.surface.RemoveMarker(s.ids.Marker)
		s.hasMarker = false
	}

	if s.hasCircle {
		s.surface.RemoveCircle(s.ids.Circle)
		s.hasCircle = false
	}

	s.removeRouteLocked()
}

func (s *Slot) removeRouteLocked() {
	if s.hasRoute {
		s.surface.RemoveRoute(s.ids.Route)
		s.hasRoute = false
	}
}
