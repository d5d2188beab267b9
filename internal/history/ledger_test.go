package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

type request struct {
	origin      tracking.Coordinates
	destination tracking.Coordinates
	done        func(tracking.Route, error)
}

type fakePlanner struct {
	mu       sync.Mutex
	requests []request
}

func (p *fakePlanner) Request(origin, destination tracking.Coordinates, done func(tracking.Route, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, request{origin: origin, destination: destination, done: done})
}

type fakeLive struct {
	position tracking.Position
	has      bool
}

func (l *fakeLive) Current() (tracking.Position, bool) {
	return l.position, l.has
}

func event(id string, lat, lng float64, ms int64) tracking.EmergencyEvent {
	return tracking.EmergencyEvent{
		ID:          id,
		Coordinates: tracking.Coordinates{Latitude: lat, Longitude: lng},
		Message:     "report " + id,
		ReportedAt:  time.UnixMilli(ms),
	}
}

func ids(entries []tracking.HistoryEntry) []string {
	result := make([]string, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entry.Event.ID)
	}

	return result
}

// TestLedger_OnSnapshotOrdersMostRecentFirst checks ordering and tie breaking.
func TestLedger_OnSnapshotOrdersMostRecentFirst(t *testing.T) {
	t.Parallel()

	ledger := New(mapsurface.NewMemory(), new(fakePlanner), new(fakeLive), Options{Zoom: 16})

	ledger.OnSnapshot([]tracking.EmergencyEvent{
		event("a", 1, 1, 1000),
		event("c", 1, 1, 3000),
		event("z", 1, 1, 2000),
		event("b", 1, 1, 2000),
	})

	entries := ledger.Entries()
	require.Equal(t, []string{"c", "b", "z", "a"}, ids(entries))
	require.Equal(t, time.UnixMilli(3000).Local().Format(tracking.HistoryTimeLayout), entries[0].DisplayTime)

	// A later snapshot replaces the ledger.
	ledger.OnSnapshot([]tracking.EmergencyEvent{event("d", 1, 1, 500)})
	require.Equal(t, []string{"d"}, ids(ledger.Entries()))

	// Entries is a copy.
	entries = ledger.Entries()
	entries[0].Event.ID = "changed"
	require.Equal(t, []string{"d"}, ids(ledger.Entries()))

	// Deleting every report empties the ledger.
	ledger.OnSnapshot(nil)
	require.Empty(t, ledger.Entries())
}

// TestLedger_SelectReplacesPreviousSelection covers selecting A then B.
func TestLedger_SelectReplacesPreviousSelection(t *testing.T) {
	t.Parallel()

	surface := mapsurface.NewMemory()
	planner := new(fakePlanner)
	live := &fakeLive{
		position: tracking.Position{Coordinates: tracking.Coordinates{Latitude: 7.0780, Longitude: 125.6137}},
		has:      true,
	}
	ledger := New(surface, planner, live, Options{Zoom: 15, SuppressItinerary: true})
	ctx := context.Background()

	a := event("A", 7.07, 125.60, 1000)
	b := event("B", 7.09, 125.63, 2000)
	ledger.OnSnapshot([]tracking.EmergencyEvent{a, b})

	require.NoError(t, ledger.Select(ctx, "A"))
	planner.requests[0].done(tracking.Route{Waypoints: []tracking.Coordinates{live.position.Coordinates, a.Coordinates}}, nil)

	require.NoError(t, ledger.Select(ctx, "B"))
	planner.requests[1].done(tracking.Route{Waypoints: []tracking.Coordinates{live.position.Coordinates, b.Coordinates}}, nil)

	snapshot := surface.Snapshot()
	require.Len(t, snapshot.Markers, 1)
	require.Equal(t, b.Coordinates, snapshot.Markers[0].At)
	require.Len(t, snapshot.Routes, 1)
	require.Equal(t, []tracking.Coordinates{live.position.Coordinates, b.Coordinates}, snapshot.Routes[0].Waypoints)
	require.True(t, snapshot.Routes[0].Style.SuppressItinerary)
	require.Equal(t, &mapsurface.Viewport{Center: b.Coordinates, Zoom: 15}, snapshot.Viewport)

	selected, ok := ledger.Selected()
	require.True(t, ok)
	require.Equal(t, "B", selected)
}

// TestLedger_SlowRouteForPreviousSelectionIsDropped checks that A's late route never shows next to B.
func TestLedger_SlowRouteForPreviousSelectionIsDropped(t *testing.T) {
	t.Parallel()

	surface := mapsurface.NewMemory()
	planner := new(fakePlanner)
	live := &fakeLive{position: tracking.Position{Coordinates: tracking.Coordinates{Latitude: 1, Longitude: 1}}, has: true}
	ledger := New(surface, planner, live, Options{Zoom: 15})
	ctx := context.Background()

	a := event("A", 2, 2, 1000)
	ledger.OnSnapshot([]tracking.EmergencyEvent{a, event("B", 3, 3, 2000)})

	require.NoError(t, ledger.Select(ctx, "A"))
	require.NoError(t, ledger.Select(ctx, "B"))
	planner.requests[0].done(tracking.Route{Waypoints: []tracking.Coordinates{live.position.Coordinates, a.Coordinates}}, nil)

	require.Empty(t, surface.Snapshot().Routes)
}

// TestLedger_SelectWithoutLivePosition checks the marker-only degradation.
func TestLedger_SelectWithoutLivePosition(t *testing.T) {
	t.Parallel()

	surface := mapsurface.NewMemory()
	planner := new(fakePlanner)
	ledger := New(surface, planner, new(fakeLive), Options{Zoom: 16})

	ledger.OnSnapshot([]tracking.EmergencyEvent{event("A", 2, 2, 1000)})
	require.NoError(t, ledger.Select(context.Background(), "A"))

	require.Empty(t, planner.requests)
	snapshot := surface.Snapshot()
	require.Len(t, snapshot.Markers, 1)
	require.Empty(t, snapshot.Routes)
	require.NotNil(t, snapshot.Viewport)
}

// TestLedger_RouteFailureKeepsMarker checks that a failed route leaves only the marker.
func TestLedger_RouteFailureKeepsMarker(t *testing.T) {
	t.Parallel()

	surface := mapsurface.NewMemory()
	planner := new(fakePlanner)
	live := &fakeLive{position: tracking.Position{Coordinates: tracking.Coordinates{Latitude: 1, Longitude: 1}}, has: true}
	ledger := New(surface, planner, live, Options{Zoom: 16})

	ledger.OnSnapshot([]tracking.EmergencyEvent{event("A", 2, 2, 1000)})
	require.NoError(t, ledger.Select(context.Background(), "A"))
	planner.requests[0].done(tracking.Route{}, tracking.ErrRouteUnavailable)

	snapshot := surface.Snapshot()
	require.Len(t, snapshot.Markers, 1)
	require.Empty(t, snapshot.Routes)
}

// TestLedger_SelectUnknown checks the not found error and that the current selection survives.
func TestLedger_SelectUnknown(t *testing.T) {
	t.Parallel()

	surface := mapsurface.NewMemory()
	ledger := New(surface, new(fakePlanner), new(fakeLive), Options{Zoom: 16})
	ctx := context.Background()

	ledger.OnSnapshot([]tracking.EmergencyEvent{event("A", 2, 2, 1000)})
	require.NoError(t, ledger.Select(ctx, "A"))

	require.ErrorIs(t, ledger.Select(ctx, "missing"), tracking.ErrEntryNotFound)
	require.Len(t, surface.Snapshot().Markers, 1)
}

// TestLedger_Close checks that close releases overlays and ignores late routes.
func TestLedger_Close(t *testing.T) {
	t.Parallel()

	surface := mapsurface.NewMemory()
	planner := new(fakePlanner)
	live := &fakeLive{position: tracking.Position{Coordinates: tracking.Coordinates{Latitude: 1, Longitude: 1}}, has: true}
	ledger := New(surface, planner, live, Options{Zoom: 16})
	ctx := context.Background()

	ledger.OnSnapshot([]tracking.EmergencyEvent{event("A", 2, 2, 1000)})
	require.NoError(t, ledger.Select(ctx, "A"))

	ledger.Close()
	planner.requests[0].done(tracking.Route{Waypoints: []tracking.Coordinates{{Latitude: 1, Longitude: 1}, {Latitude: 2, Longitude: 2}}}, nil)

	snapshot := surface.Snapshot()
	require.Empty(t, snapshot.Markers)
	require.Empty(t, snapshot.Routes)
	require.ErrorIs(t, ledger.Select(ctx, "A"), tracking.ErrClosed)

	_, ok := ledger.Selected()
	require.False(t, ok)
}
