package mapsurface

import (
	"maps"
	"slices"
	"sync"

	"github.com/oshokin/trackguard/internal/domain/tracking"
)

// MarkerOverlay is a marker held by the memory surface.
type MarkerOverlay struct {
	ID    string               `json:"id"`
	At    tracking.Coordinates `json:"at"`
	Label string               `json:"label,omitempty"`
}

// CircleOverlay is a circle held by the memory surface.
type CircleOverlay struct {
	ID           string               `json:"id"`
	At           tracking.Coordinates `json:"at"`
	RadiusMeters float64              `json:"radiusMeters"`
	Style        CircleStyle          `json:"style"`
}

// RouteOverlay is a route polyline held by the memory surface.
type RouteOverlay struct {
	ID        string                 `json:"id"`
	Waypoints []tracking.Coordinates `json:"waypoints"`
	Style     RouteStyle             `json:"style"`
}

// Viewport is the current map center and zoom.
type Viewport struct {
	Center tracking.Coordinates `json:"center"`
	Zoom   int                  `json:"zoom"`
}

// Snapshot is a consistent copy of everything on the surface, sorted by ID.
type Snapshot struct {
	// Revision increases on every change that altered the surface.
	Revision uint64          `json:"revision"`
	Markers  []MarkerOverlay `json:"markers"`
	Circles  []CircleOverlay `json:"circles"`
	Routes   []RouteOverlay  `json:"routes"`
	Viewport *Viewport       `json:"viewport,omitempty"`
}

// Memory is a Surface that keeps overlays in memory for an external renderer
// to fetch. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	revision uint64
	markers  map[string]MarkerOverlay
	circles  map[string]CircleOverlay
	routes   map[string]RouteOverlay
	viewport *Viewport
}

// NewMemory returns an empty memory surface.
func NewMemory() *Memory {
	return &Memory{
		markers: make(map[string]MarkerOverlay),
		circles: make(map[string]CircleOverlay),
		routes:  make(map[string]RouteOverlay),
	}
}

// AddOrMoveMarker implements Surface.
func (m *Memory) AddOrMoveMarker(id string, at tracking.Coordinates, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := MarkerOverlay{ID: id, At: at, Label: label}
	if current, ok := m.markers[id]; ok && current == next {
		return
	}

	m.markers[id] = next
	m.revision++
}

// RemoveMarker implements Surface.
func (m *Memory) RemoveMarker(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.markers[id]; !ok {
		return
	}

	delete(m.markers, id)
	m.revision++
}

// AddOrMoveCircle implements Surface.
func (m *Memory) AddOrMoveCircle(id string, at tracking.Coordinates, radiusMeters float64, style CircleStyle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := CircleOverlay{ID: id, At: at, RadiusMeters: radiusMeters, Style: style}
	if current, ok := m.circles[id]; ok && current == next {
		return
	}

	m.circles[id] = next
	m.revision++
}

// RemoveCircle implements Surface.
func (m *Memory) RemoveCircle(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.circles[id]; !ok {
		return
	}

	delete(m.circles, id)
	m.revision++
}

// ShowRoute implements Surface.
func (m *Memory) ShowRoute(id string, waypoints []tracking.Coordinates, style RouteStyle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.routes[id]; ok && current.Style == style && slices.Equal(current.Waypoints, waypoints) {
		return
	}

	m.routes[id] = RouteOverlay{ID: id, Waypoints: slices.Clone(waypoints), Style: style}
	m.revision++
}

// RemoveRoute implements Surface.
func (m *Memory) RemoveRoute(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.routes[id]; !ok {
		return
	}

	delete(m.routes, id)
	m.revision++
}

// SetViewport implements Surface.
func (m *Memory) SetViewport(at tracking.Coordinates, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := Viewport{Center: at, Zoom: zoom}
	if m.viewport != nil && *m.viewport == next {
		return
	}

	m.viewport = &next
	m.revision++
}

// Snapshot returns a copy of the surface.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		Revision: m.revision,
		Markers:  make([]MarkerOverlay, 0, len(m.markers)),
		Circles:  make([]CircleOverlay, 0, len(m.circles)),
		Routes:   make([]RouteOverlay, 0, len(m.routes)),
	}

	for _, id := range slices.Sorted(maps.Keys(m.markers)) {
		snapshot.Markers = append(snapshot.Markers, m.markers[id])
	}

	for _, id := range slices.Sorted(maps.Keys(m.circles)) {
		snapshot.Circles = append(snapshot.Circles, m.circles[id])
	}

	for _, id := range slices.Sorted(maps.Keys(m.routes)) {
		route := m.routes[id]
		route.Waypoints = slices.Clone(route.Waypoints)
		snapshot.Routes = append(snapshot.Routes, route)
	}

	if m.viewport != nil {
		viewport := *m.viewport
		snapshot.Viewport = &viewport
	}

	return snapshot
}
