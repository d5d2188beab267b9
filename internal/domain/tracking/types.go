package tracking

import (
	"math"
	"time"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	// Latitude in degrees, north positive.
	Latitude float64 `json:"latitude"`
	// Longitude in degrees, east positive.
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point is finite and inside the WGS84 range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}

	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Position is the live location of the tracked device.
type Position struct {
	Coordinates

	// AccuracyRadiusMeters is the horizontal uncertainty of the fix.
	AccuracyRadiusMeters float64 `json:"accuracyRadiusMeters"`
	// CapturedAt is the device time of the fix; it may jitter backwards.
	CapturedAt time.Time `json:"capturedAt"`
}

// EmergencyEvent is a reported incident. It is never mutated after parsing.
type EmergencyEvent struct {
	// ID is the opaque identifier assigned by the feed.
	ID string `json:"id"`

	Coordinates

	// Message is the text shown in the alert popup.
	Message string `json:"message"`
	// ReportedAt orders events; a strictly later value supersedes the current alert.
	ReportedAt time.Time `json:"reportedAt"`
}

// NewerThan reports whether e was reported strictly after t.
func (e EmergencyEvent) NewerThan(t time.Time) bool {
	return e.ReportedAt.After(t)
}

// HistoryEntry is a replayable view over a received event.
type HistoryEntry struct {
	// Event is the underlying report.
	Event EmergencyEvent `json:"event"`
	// DisplayTime is ReportedAt formatted for operators.
	DisplayTime string `json:"displayTime"`
}

// HistoryTimeLayout formats HistoryEntry.DisplayTime.
const HistoryTimeLayout = "2006-01-02 15:04:05"

// NewHistoryEntry builds the entry shown for an event.
func NewHistoryEntry(e EmergencyEvent) HistoryEntry {
	return HistoryEntry{
		Event:       e,
		DisplayTime: e.ReportedAt.Local().Format(HistoryTimeLayout),
	}
}

// Route is the ordered waypoint sequence returned by the routing service.
type Route struct {
	// Waypoints run from origin to destination.
	Waypoints []Coordinates `json:"waypoints"`
	// DistanceMeters is the route length when known.
	DistanceMeters float64 `json:"distanceMeters,omitempty"`
	// DurationSeconds is the travel time estimate when known.
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}
