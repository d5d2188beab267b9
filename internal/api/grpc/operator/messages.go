package operator

import (
	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

// StateResponse is the observable state of the tracker.
type StateResponse struct {
	// Alert is the alert state machine state.
	Alert tracking.AlertState
	// SelectedHistoryID is the history entry on the map, empty when none.
	SelectedHistoryID string
	// Position is the live position, nil before the first fix.
	Position *tracking.Position
}

// ListHistoryResponse lists reports most recent first.
type ListHistoryResponse struct {
	Entries []tracking.HistoryEntry
}

// OverlaysResponse holds the drawn overlays as a GeoJSON feature collection.
type OverlaysResponse struct {
	Overlays mapsurface.FeatureCollection
}
