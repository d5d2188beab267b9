package tracker

import (
	"sync"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

// DefaultAccuracyRadiusMeters is drawn when a fix carries no accuracy.
const DefaultAccuracyRadiusMeters = 100

// Live holds the single canonical live position and draws it through the
// live overlay slot: one marker and one accuracy circle.
type Live struct {
	// slot owns the live marker and circle.
	slot *mapsurface.Slot
	// surface receives the viewport change on the first fix.
	surface mapsurface.Surface
	// zoom is the zoom level used when centering on the first fix.
	zoom int

	mu       sync.RWMutex
	position tracking.Position
	has      bool
}

// NewLive creates the live layer.
func NewLive(surface mapsurface.Surface, zoom int) *Live {
	return &Live{
		slot:    mapsurface.NewSlot(surface, mapsurface.LiveSlotIDs, mapsurface.RouteStyle{}),
		surface: surface,
		zoom:    zoom,
	}
}

// Apply replaces the live position and moves the live overlays to it.
func (l *Live) Apply(pos tracking.Position) {
	l.mu.Lock()
	first := !l.has
	l.position = pos
	l.has = true
	l.mu.Unlock()

	radius := pos.AccuracyRadiusMeters
	if radius <= 0 {
		radius = DefaultAccuracyRadiusMeters
	}

	l.slot.Update(mapsurface.Overlay{
		Marker: &mapsurface.Marker{At: pos.Coordinates, Label: "Your Location"},
		Circle: &mapsurface.Circle{At: pos.Coordinates, RadiusMeters: radius, Style: mapsurface.LiveCircleStyle},
	})

	if first {
		l.surface.SetViewport(pos.Coordinates, l.zoom)
	}
}

// Current returns the live position, if one has arrived.
func (l *Live) Current() (tracking.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.position, l.has
}

// Clear removes the live overlays. The last position is kept for reads.
func (l *Live) Clear() {
	l.slot.Clear()
}
