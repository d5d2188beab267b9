package routing

import (
	"context"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/gate"
)

// Scheduler runs fn on the goroutine that owns the overlays, e.g. the
// orchestrator event loop.
type Scheduler func(fn func())

// Planner runs route requests in the background and hands results back
// through a Scheduler. Results that arrive after Close are discarded.
type Planner struct {
	// router computes the routes.
	router Router
	// schedule delivers results to the overlay owner.
	schedule Scheduler

	// ctx is canceled by Close to abort in-flight requests.
	ctx    context.Context //nolint:containedctx // Lifetime of background requests.
	cancel context.CancelFunc
	// gate drops results once Close has been called.
	gate gate.Gate
}

// NewPlanner creates a planner. A nil schedule runs results on the request goroutine.
func NewPlanner(router Router, schedule Scheduler) *Planner {
	if schedule == nil {
		schedule = func(fn func()) { fn() }
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Planner{
		router:   router,
		schedule: schedule,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Request starts computing a route and returns immediately. done runs via
// the scheduler unless the planner was closed first.
func (p *Planner) Request(origin, destination tracking.Coordinates, done func(tracking.Route, error)) {
	if p.gate.Closed() {
		return
	}

	go func() {
		route, err := p.router.Route(p.ctx, origin, destination)
		if p.ctx.Err() != nil {
			return
		}

		p.schedule(func() {
			p.gate.Run(func() { done(route, err) })
		})
	}()
}

// Close aborts in-flight requests and discards their results. It does not
// wait for a router that ignores cancellation.
func (p *Planner) Close() {
	if p.gate.Close() {
		p.cancel()
	}
}
