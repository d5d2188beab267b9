package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/oshokin/trackguard/internal/alert"
	"github.com/oshokin/trackguard/internal/audio"
	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/feed"
	"github.com/oshokin/trackguard/internal/history"
	"github.com/oshokin/trackguard/internal/logger"
	"github.com/oshokin/trackguard/internal/mapsurface"
	"github.com/oshokin/trackguard/internal/routing"
	"github.com/oshokin/trackguard/internal/tracker"
)

// DefaultQueueSize is the event loop backlog used when Options.QueueSize is zero.
const DefaultQueueSize = 64

var (
	// errMissingDependency is returned by New when a capability is nil.
	errMissingDependency = errors.New("missing dependency")
	// errAlreadyStarted is returned by a second Start.
	errAlreadyStarted = errors.New("orchestrator already started")
	// errNotStarted is returned by operator actions issued before Start.
	errNotStarted = fmt.Errorf("%w: orchestrator not started", tracking.ErrClosed)
	// errActionPanicked is returned by an operator action that panicked on the loop.
	errActionPanicked = errors.New("operator action panicked")
	// ErrOverlaysUnsupported is returned by Overlays when the surface cannot be read back.
	ErrOverlaysUnsupported = errors.New("map surface cannot be read back")
)

// Deps are the capabilities the orchestrator wires together.
type Deps struct {
	// Source delivers live position fixes.
	Source tracker.Source
	// Feed delivers emergency report snapshots.
	Feed feed.Feed
	// Router computes routes.
	Router routing.Router
	// Surface renders the overlays.
	Surface mapsurface.Surface
}

// Options configures the orchestrator and the components it owns.
type Options struct {
	// FeedPath is the feed node holding the reports.
	FeedPath string
	// Tracker holds the sampling options.
	Tracker tracker.Options
	// Zoom is the zoom level for every recentering.
	Zoom int
	// HazardRadiusMeters is the radius of the emergency circle.
	HazardRadiusMeters float64
	// AllowDismiss enables the dismiss action.
	AllowDismiss bool
	// SuppressItinerary asks the renderer not to add a turn-by-turn panel to routes.
	SuppressItinerary bool
	// Cue is the alarm sound.
	Cue audio.Cue
	// Notifier shows alert popups and notices.
	Notifier alert.Notifier
	// QueueSize is the event loop backlog.
	QueueSize int
}

// SurfaceReader is a surface whose overlays can be read back.
type SurfaceReader interface {
	Snapshot() mapsurface.Snapshot
}

// Orchestrator owns the event loop. Every callback and operator action runs
// on that loop, one at a time.
type Orchestrator struct {
	// deps are the wired capabilities.
	deps Deps
	// opts holds the configuration.
	opts Options

	tracker  *tracker.Tracker
	listener *feed.Listener
	live     *tracker.Live
	planner  *routing.Planner
	alert    *alert.Machine
	history  *history.Ledger

	// queue carries callbacks to the loop.
	queue chan func()
	// done is closed by Close; the loop drops what is still queued.
	done chan struct{}
	// loopExited is closed when the loop goroutine returns.
	loopExited chan struct{}

	mu         sync.Mutex
	started    bool
	trackerSub *tracker.Subscription
	feedSub    *feed.Subscription

	closeOnce sync.Once
}

// New wires the components. Nothing runs until Start.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("%w: position source", errMissingDependency)
	case deps.Feed == nil:
		return nil, fmt.Errorf("%w: emergency feed", errMissingDependency)
	case deps.Router == nil:
		return nil, fmt.Errorf("%w: router", errMissingDependency)
	case deps.Surface == nil:
		return nil, fmt.Errorf("%w: map surface", errMissingDependency)
	}

	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	o := &Orchestrator{
		deps:       deps,
		opts:       opts,
		tracker:    tracker.New(deps.Source),
		listener:   feed.NewListener(deps.Feed, opts.FeedPath),
		live:       tracker.NewLive(deps.Surface, opts.Zoom),
		queue:      make(chan func(), opts.QueueSize),
		done:       make(chan struct{}),
		loopExited: make(chan struct{}),
	}

	o.planner = routing.NewPlanner(deps.Router, func(fn func()) { o.post(fn) })
	o.alert = alert.New(deps.Surface, o.planner, o.live, alert.Options{
		HazardRadiusMeters: opts.HazardRadiusMeters,
		AllowDismiss:       opts.AllowDismiss,
		SuppressItinerary:  opts.SuppressItinerary,
		Zoom:               opts.Zoom,
		Cue:                opts.Cue,
		Notifier:           opts.Notifier,
	})
	o.history = history.New(deps.Surface, o.planner, o.live, history.Options{
		Zoom:              opts.Zoom,
		SuppressItinerary: opts.SuppressItinerary,
	})

	return o, nil
}

// Run starts the orchestrator, blocks until ctx is done and tears everything down.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.Close()

	if err := o.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}

// Start launches the event loop and subscribes to the tracker and the feed.
// On error everything already started is released.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx = logger.WithName(ctx, "orchestrator")

	launched, err := o.start(ctx)
	if err != nil {
		if launched {
			o.Close()
		}

		return err
	}

	logger.Info(ctx, "Orchestrator started")

	return nil
}

// start reports whether the loop was launched, so that a failure can be released.
func (o *Orchestrator) start(ctx context.Context) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return false, errAlreadyStarted
	}

	select {
	case <-o.done:
		return false, tracking.ErrClosed
	default:
	}

	o.started = true

	go o.loop(ctx)

	trackerSub, err := o.tracker.Start(ctx,
		func(pos tracking.Position) {
			o.post(func() { o.live.Apply(pos) })
		},
		func(err error) {
			o.post(func() { logger.DebugKV(ctx, "Sampling continues after failure", "error", err) })
		},
		o.opts.Tracker)
	if err != nil {
		return true, fmt.Errorf("start position tracker: %w", err)
	}

	o.trackerSub = trackerSub

	feedSub, err := o.listener.Subscribe(ctx, feed.Handlers{
		OnEvent: func(event tracking.EmergencyEvent) {
			o.post(func() { o.alert.OnEvent(ctx, event) })
		},
		OnSnapshot: func(events []tracking.EmergencyEvent) {
			o.post(func() { o.history.OnSnapshot(events) })
		},
	})
	if err != nil {
		return true, fmt.Errorf("start emergency feed listener: %w", err)
	}

	o.feedSub = feedSub

	return true, nil
}

// Close stops the tracker and the feed, discards in-flight route results,
// stops the loop and removes every overlay. It is idempotent and must not
// be called from a callback running on the loop.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		trackerSub, feedSub, started := o.trackerSub, o.feedSub, o.started
		o.mu.Unlock()

		trackerSub.Stop()
		feedSub.Stop()
		o.planner.Close()

		close(o.done)

		if started {
			<-o.loopExited
		}

		o.alert.Close()
		o.history.Close()
		o.live.Clear()
	})
}

// post queues fn on the loop. It reports false once the orchestrator is closed.
func (o *Orchestrator) post(fn func()) bool {
	select {
	case <-o.done:
		return false
	default:
	}

	select {
	case <-o.done:
		return false
	case o.queue <- fn:
		return true
	}
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer close(o.loopExited)

	for {
		select {
		case <-o.done:
			return
		case fn := <-o.queue:
			select {
			case <-o.done:
				return
			default:
			}

			o.run(ctx, fn)
		}
	}
}

// run executes one callback. A panic is logged and the loop keeps going.
func (o *Orchestrator) run(ctx context.Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Recovered panic in event loop", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	fn()
}

// do runs fn on the loop and waits for it. ctx is only checked before fn is
// queued: once queued, fn writes the caller's results, so do returns only
// after fn ran or the loop exited without running it.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	started := o.started
	o.mu.Unlock()

	if !started {
		return errNotStarted
	}

	finished := make(chan bool, 1)

	posted := o.post(func() {
		completed := false

		defer func() { finished <- completed }()

		fn()

		completed = true
	})
	if !posted {
		return tracking.ErrClosed
	}

	select {
	case completed := <-finished:
		return actionResult(completed)
	case <-o.loopExited:
		// fn may have been the last callback the loop ran.
		select {
		case completed := <-finished:
			return actionResult(completed)
		default:
			return tracking.ErrClosed
		}
	}
}

func actionResult(completed bool) error {
	if !completed {
		return errActionPanicked
	}

	return nil
}
