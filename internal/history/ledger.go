package history

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/logger"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

// Planner computes routes in the background.
type Planner interface {
	Request(origin, destination tracking.Coordinates, done func(tracking.Route, error))
}

// PositionReader returns the live position, if one has arrived.
type PositionReader interface {
	Current() (tracking.Position, bool)
}

// Options configures the ledger.
type Options struct {
	// Zoom is used when centering on a selection.
	Zoom int
	// SuppressItinerary asks the renderer not to add a turn-by-turn panel to routes.
	SuppressItinerary bool
}

// Ledger keeps every received report most-recent-first and replays one of
// them on the history overlay slot.
type Ledger struct {
	// slot owns the history marker and route.
	slot *mapsurface.Slot
	// surface receives viewport changes.
	surface mapsurface.Surface
	// planner computes the route to a selected entry.
	planner Planner
	// live provides the route origin.
	live PositionReader
	// zoom is used when centering on a selection.
	zoom int

	mu      sync.Mutex
	entries []tracking.HistoryEntry
	// selected is the ID of the entry on the map, empty when none.
	selected string
	// selectSeq identifies the latest selection; older route results are stale.
	selectSeq uint64
	closed    bool
}

// New creates an empty ledger.
func New(surface mapsurface.Surface, planner Planner, live PositionReader, opts Options) *Ledger {
	style := mapsurface.HistoryRouteStyle
	style.SuppressItinerary = opts.SuppressItinerary

	return &Ledger{
		slot:    mapsurface.NewSlot(surface, mapsurface.HistorySlotIDs, style),
		surface: surface,
		planner: planner,
		live:    live,
		zoom:    opts.Zoom,
	}
}

// OnSnapshot rebuilds the ledger from the full set of valid reports.
func (l *Ledger) OnSnapshot(events []tracking.EmergencyEvent) {
	entries := make([]tracking.HistoryEntry, 0, len(events))
	for _, event := range events {
		entries = append(entries, tracking.NewHistoryEntry(event))
	}

	slices.SortFunc(entries, func(a, b tracking.HistoryEntry) int {
		if c := b.Event.ReportedAt.Compare(a.Event.ReportedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.Event.ID, b.Event.ID)
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		l.entries = entries
	}
}

// Entries returns a copy of the ledger, most recent first.
func (l *Ledger) Entries() []tracking.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.entries)
}

// Selected returns the ID of the entry currently on the map.
func (l *Ledger) Selected() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.selected, l.selected != ""
}

// Select replaces whatever history visualization is on the map with the
// entry id: its marker, a route from the live position when there is one,
// and a viewport centered on it.
func (l *Ledger) Select(ctx context.Context, id string) error {
	origin, destination, seq, err := l.draw(ctx, id)
	if err != nil || seq == 0 {
		return err
	}

	l.planner.Request(origin, destination, func(route tracking.Route, routeErr error) {
		l.applyRoute(ctx, seq, route, routeErr)
	})

	return nil
}

// draw replaces the history overlays with the entry's marker and returns
// the route to request. A zero seq means no route is needed.
func (l *Ledger) draw(ctx context.Context, id string) (tracking.Coordinates, tracking.Coordinates, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return tracking.Coordinates{}, tracking.Coordinates{}, 0, tracking.ErrClosed
	}

	index := slices.IndexFunc(l.entries, func(e tracking.HistoryEntry) bool { return e.Event.ID == id })
	if index < 0 {
		return tracking.Coordinates{}, tracking.Coordinates{}, 0, fmt.Errorf("%w: %s", tracking.ErrEntryNotFound, id)
	}

	entry := l.entries[index]
	at := entry.Event.Coordinates

	l.slot.Replace(mapsurface.Overlay{
		Marker: &mapsurface.Marker{At: at, Label: entry.Event.Message + " (" + entry.DisplayTime + ")"},
	})
	l.surface.SetViewport(at, l.zoom)

	l.selected = id
	l.selectSeq++

	position, ok := l.live.Current()
	if !ok {
		logger.InfoKV(ctx, "No live position yet, showing history marker only", "id", id)

		return tracking.Coordinates{}, tracking.Coordinates{}, 0, nil
	}

	return position.Coordinates, at, l.selectSeq, nil
}

// Clear removes the history visualization.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.slot.Clear()
	l.selected = ""
	l.selectSeq++
}

// Close clears the history overlays and discards pending route results.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.slot.Clear()
	l.selected = ""
	l.selectSeq++
}

func (l *Ledger) applyRoute(ctx context.Context, seq uint64, route tracking.Route, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || seq != l.selectSeq {
		logger.DebugKV(ctx, "Discarding stale history route", "seq", seq)
		return
	}

	if err != nil {
		logger.WarnKV(ctx, "History route unavailable", "id", l.selected, "error", err)
		return
	}

	l.slot.ReplaceRoute(route.Waypoints)
}
