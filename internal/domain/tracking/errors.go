package tracking

import "errors"

var (
	// ErrSamplingFailure wraps position sampling errors; the tracker keeps sampling.
	ErrSamplingFailure = errors.New("position sampling failed")
	// ErrMalformedFeedRecord marks a feed record that cannot be parsed; it is skipped.
	ErrMalformedFeedRecord = errors.New("malformed feed record")
	// ErrRouteUnavailable is returned when no route could be computed.
	ErrRouteUnavailable = errors.New("route unavailable")
	// ErrAudioPlayback marks a failed alarm cue; it is swallowed.
	ErrAudioPlayback = errors.New("audio playback failed")
	// ErrNoLivePosition is returned when a route needs a position that has not arrived yet.
	ErrNoLivePosition = errors.New("no live position yet")
	// ErrNoActiveAlert is returned by alert actions while idle.
	ErrNoActiveAlert = errors.New("no active alert")
	// ErrEntryNotFound is returned when selecting an unknown history entry.
	ErrEntryNotFound = errors.New("history entry not found")
	// ErrDismissDisabled is returned when dismissing alerts is not enabled.
	ErrDismissDisabled = errors.New("dismissing alerts is disabled")
	// ErrClosed is returned by operations on a stopped component.
	ErrClosed = errors.New("component is closed")
)
