package orchestrator

import (
	"context"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

// ShowOnMap draws the active alert and requests its route.
func (o *Orchestrator) ShowOnMap(ctx context.Context) error {
	var err error

	if doErr := o.do(ctx, func() { err = o.alert.ShowOnMap(ctx) }); doErr != nil {
		return doErr
	}

	return err
}

// SelectHistory replays the history entry id on the map.
func (o *Orchestrator) SelectHistory(ctx context.Context, id string) error {
	var err error

	if doErr := o.do(ctx, func() { err = o.history.Select(ctx, id) }); doErr != nil {
		return doErr
	}

	return err
}

// ClearHistory removes the history visualization.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	return o.do(ctx, o.history.Clear)
}

// Dismiss returns the alert to idle when dismissing is enabled.
func (o *Orchestrator) Dismiss(ctx context.Context) error {
	var err error

	if doErr := o.do(ctx, func() { err = o.alert.Dismiss(ctx) }); doErr != nil {
		return doErr
	}

	return err
}

// State returns the alert state and the selected history entry.
func (o *Orchestrator) State(ctx context.Context) (tracking.AlertState, string, error) {
	var (
		state    tracking.AlertState
		selected string
	)

	err := o.do(ctx, func() {
		state = o.alert.State()
		selected, _ = o.history.Selected()
	})

	return state, selected, err
}

// History returns the received reports, most recent first.
func (o *Orchestrator) History(ctx context.Context) ([]tracking.HistoryEntry, error) {
	var entries []tracking.HistoryEntry

	err := o.do(ctx, func() { entries = o.history.Entries() })

	return entries, err
}

// Position returns the live position, if one has arrived.
func (o *Orchestrator) Position(ctx context.Context) (tracking.Position, bool, error) {
	var (
		position tracking.Position
		ok       bool
	)

	err := o.do(ctx, func() { position, ok = o.live.Current() })

	return position, ok, err
}

// Overlays returns what is drawn on the surface, read between two callbacks.
func (o *Orchestrator) Overlays(ctx context.Context) (mapsurface.Snapshot, error) {
	reader, ok := o.deps.Surface.(SurfaceReader)
	if !ok {
		return mapsurface.Snapshot{}, ErrOverlaysUnsupported
	}

	var snapshot mapsurface.Snapshot

	err := o.do(ctx, func() { snapshot = reader.Snapshot() })

	return snapshot, err
}
