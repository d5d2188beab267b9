package alert

import (
	"context"
	"sync"

	"github.com/oshokin/trackguard/internal/audio"
	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/logger"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

// DefaultPopup is shown for events that carry no message.
const DefaultPopup = "Emergency reported"

// Planner computes routes in the background.
type Planner interface {
	Request(origin, destination tracking.Coordinates, done func(tracking.Route, error))
}

// PositionReader returns the live position, if one has arrived.
type PositionReader interface {
	Current() (tracking.Position, bool)
}

// Options configures the machine.
type Options struct {
	// HazardRadiusMeters is the radius of the circle drawn around the emergency.
	HazardRadiusMeters float64
	// AllowDismiss enables Dismiss.
	AllowDismiss bool
	// SuppressItinerary asks the renderer not to add a turn-by-turn panel to routes.
	SuppressItinerary bool
	// Zoom is used to center the map on the emergency; zero leaves the viewport alone.
	Zoom int
	// Cue is played once per new alert. Defaults to silence.
	Cue audio.Cue
	// Notifier shows the popup and notices. Defaults to LogNotifier.
	Notifier Notifier
}

// Machine is the alert state machine: Idle -> Pending -> RouteShown.
// It owns the alert overlay slot and nothing else.
type Machine struct {
	// slot owns the alert marker, hazard circle and route.
	slot *mapsurface.Slot
	// surface receives viewport changes.
	surface mapsurface.Surface
	// planner computes the route to the emergency.
	planner Planner
	// live provides the route origin.
	live PositionReader
	// opts holds the configuration.
	opts Options

	mu    sync.Mutex
	state tracking.AlertState
	// routeSeq identifies the latest route request; older results are stale.
	routeSeq uint64
	closed   bool
}

// New creates an idle machine.
func New(surface mapsurface.Surface, planner Planner, live PositionReader, opts Options) *Machine {
	if opts.Cue == nil {
		opts.Cue = audio.Silent{}
	}

	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}

	style := mapsurface.AlertRouteStyle
	style.SuppressItinerary = opts.SuppressItinerary

	return &Machine{
		slot:    mapsurface.NewSlot(surface, mapsurface.AlertSlotIDs, style),
		surface: surface,
		planner: planner,
		live:    live,
		opts:    opts,
	}
}

// OnEvent moves the machine to Pending for an event newer than any seen
// before. Whatever the alert currently shows is cleared first.
func (m *Machine) OnEvent(ctx context.Context, event tracking.EmergencyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if !event.NewerThan(m.state.LastSeen) {
		logger.DebugKV(ctx, "Ignoring event that is not newer than the current one",
			"id", event.ID, "reported_at", event.ReportedAt, "last_seen", m.state.LastSeen)

		return
	}

	m.slot.Clear()
	m.routeSeq++

	popup := event.Message
	if popup == "" {
		popup = DefaultPopup
	}

	m.state = tracking.AlertState{
		Phase:       tracking.PhasePending,
		ActiveEvent: &event,
		LastSeen:    event.ReportedAt,
		Popup:       popup,
	}

	m.opts.Notifier.ShowAlert(ctx, event)

	if err := m.opts.Cue.PlayOnce(ctx); err != nil {
		logger.WarnKV(ctx, "Alarm cue failed", "error", err)
	}
}

// ShowOnMap draws the active emergency and requests a route to it from the
// live position. The markers are drawn at once; the route follows when the
// planner delivers it.
func (m *Machine) ShowOnMap(ctx context.Context) error {
	origin, destination, seq, err := m.drawActive(ctx)
	if err != nil || seq == 0 {
		return err
	}

	m.planner.Request(origin, destination, func(route tracking.Route, routeErr error) {
		m.applyRoute(ctx, seq, route, routeErr)
	})

	return nil
}

// drawActive draws the active event and returns the route to request. A
// zero seq means no route is needed.
func (m *Machine) drawActive(ctx context.Context) (tracking.Coordinates, tracking.Coordinates, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return tracking.Coordinates{}, tracking.Coordinates{}, 0, tracking.ErrClosed
	}

	if m.state.Phase == tracking.PhaseIdle || m.state.ActiveEvent == nil {
		return tracking.Coordinates{}, tracking.Coordinates{}, 0, tracking.ErrNoActiveAlert
	}

	event := *m.state.ActiveEvent

	m.slot.Update(mapsurface.Overlay{
		Marker: &mapsurface.Marker{At: event.Coordinates, Label: m.state.Popup},
		Circle: &mapsurface.Circle{
			At:           event.Coordinates,
			RadiusMeters: m.opts.HazardRadiusMeters,
			Style:        mapsurface.HazardStyle,
		},
	})

	if m.opts.Zoom > 0 {
		m.surface.SetViewport(event.Coordinates, m.opts.Zoom)
	}

	m.state.Phase = tracking.PhaseRouteShown
	m.state.Notice = ""
	m.routeSeq++

	position, ok := m.live.Current()
	if !ok {
		m.setNoticeLocked(ctx, tracking.ErrNoLivePosition.Error())

		return tracking.Coordinates{}, tracking.Coordinates{}, 0, nil
	}

	return position.Coordinates, event.Coordinates, m.routeSeq, nil
}

// Dismiss clears the alert and returns to Idle. LastSeen is kept, so the
// dismissed event does not alert again.
func (m *Machine) Dismiss(ctx context.Context) error {
	if !m.opts.AllowDismiss {
		return tracking.ErrDismissDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return tracking.ErrClosed
	}

	if m.state.Phase == tracking.PhaseIdle {
		return tracking.ErrNoActiveAlert
	}

	m.slot.Clear()
	m.routeSeq++
	m.state = tracking.AlertState{LastSeen: m.state.LastSeen}

	logger.Info(ctx, "Alert dismissed")

	return nil
}

// State returns a copy of the current state.
func (m *Machine) State() tracking.AlertState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return *m.state.Clone()
}

// Close clears the alert overlays and discards pending route results.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	m.routeSeq++
	m.slot.Clear()
	m.state.RouteDrawn = false
}

func (m *Machine) applyRoute(ctx context.Context, seq uint64, route tracking.Route, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || seq != m.routeSeq {
		logger.DebugKV(ctx, "Discarding stale route result", "seq", seq)
		return
	}

	if err != nil {
		logger.WarnKV(ctx, "Route unavailable", "error", err)
		m.setNoticeLocked(ctx, tracking.ErrRouteUnavailable.Error())

		return
	}

	m.slot.ReplaceRoute(route.Waypoints)
	m.state.RouteDrawn = m.slot.HasRoute()
	m.state.Notice = ""
}

func (m *Machine) setNoticeLocked(ctx context.Context, notice string) {
	m.state.Notice = notice
	m.opts.Notifier.ShowNotice(ctx, notice)
}
