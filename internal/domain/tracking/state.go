package tracking

import "time"

// AlertPhase is the lifecycle stage of the single current alert.
type AlertPhase int

const (
	// PhaseIdle means no alert has been received yet.
	PhaseIdle AlertPhase = iota
	// PhasePending means an alert popup is shown and awaits the operator.
	PhasePending
	// PhaseRouteShown means the emergency is drawn on the map.
	PhaseRouteShown
)

// String returns the phase name.
func (p AlertPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseRouteShown:
		return "route_shown"
	default:
		return "unknown"
	}
}

// ParseAlertPhase returns the phase named name, as written by String.
func ParseAlertPhase(name string) (AlertPhase, bool) {
	for _, phase := range []AlertPhase{PhaseIdle, PhasePending, PhaseRouteShown} {
		if phase.String() == name {
			return phase, true
		}
	}

	return PhaseIdle, false
}

// AlertState is the observable state of the alert state machine.
type AlertState struct {
	// Phase is the current lifecycle stage.
	Phase AlertPhase `json:"phase"`
	// ActiveEvent is the event being alerted on, nil while idle.
	ActiveEvent *EmergencyEvent `json:"activeEvent,omitempty"`
	// LastSeen is the ReportedAt of the newest accepted event.
	LastSeen time.Time `json:"lastSeen"`
	// Popup is the message shown in the alert popup.
	Popup string `json:"popup,omitempty"`
	// Notice is a non-blocking notice such as "route unavailable".
	Notice string `json:"notice,omitempty"`
	// RouteDrawn reports whether a route polyline is currently on the map.
	RouteDrawn bool `json:"routeDrawn"`
}

// Clone returns a copy of the state that shares no pointers with s.
func (s *AlertState) Clone() *AlertState {
	if s == nil {
		return nil
	}

	cloned := *s

	if s.ActiveEvent != nil {
		event := *s.ActiveEvent
		cloned.ActiveEvent = &event
	}

	return &cloned
}
