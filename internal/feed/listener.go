package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/gate"
	"github.com/oshokin/trackguard/internal/logger"
)

// SubscriptionID identifies a subscription on a Feed.
type SubscriptionID uint64

// Feed is the emergency feed capability. It delivers the full current
// snapshot of path on every change; callbacks may fire until Unsubscribe returns.
type Feed interface {
	Subscribe(path string, onSnapshot func(Snapshot), onErr func(error)) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID)
}

// Handlers are the listener callbacks. Only OnEvent is required.
type Handlers struct {
	// OnEvent receives an event newer than every event emitted before.
	OnEvent func(tracking.EmergencyEvent)
	// OnSnapshot receives every valid event of each snapshot, replacing the
	// previous set. A snapshot without valid events yields an empty set.
	OnSnapshot func([]tracking.EmergencyEvent)
	// OnError receives feed transport errors.
	OnError func(error)
}

// errNoEventHandler is returned when Subscribe is called without OnEvent.
var errNoEventHandler = errors.New("event handler must be provided")

// Listener turns feed snapshots into at most one alert per new report.
type Listener struct {
	// feed is the snapshot source.
	feed Feed
	// path is the feed node holding the reports.
	path string

	mu sync.Mutex
	// emittedAt is the ReportedAt of the last event handed to OnEvent.
	emittedAt time.Time
}

// NewListener creates a listener reading path from feed.
func NewListener(feed Feed, path string) *Listener {
	return &Listener{
		feed: feed,
		path: path,
	}
}

// Subscribe starts listening. The returned subscription must be stopped.
func (l *Listener) Subscribe(ctx context.Context, handlers Handlers) (*Subscription, error) {
	if handlers.OnEvent == nil {
		return nil, errNoEventHandler
	}

	ctx = logger.WithKV(logger.WithName(ctx, "feed"), "path", l.path)

	sub := &Subscription{
		feed: l.feed,
	}

	onSnapshot := func(snapshot Snapshot) {
		sub.gate.Run(func() { l.handleSnapshot(ctx, snapshot, handlers) })
	}

	onErr := func(err error) {
		sub.gate.Run(func() {
			logger.WarnKV(ctx, "Feed error", "error", err)

			if handlers.OnError != nil {
				handlers.OnError(err)
			}
		})
	}

	id, err := l.feed.Subscribe(l.path, onSnapshot, onErr)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", l.path, err)
	}

	sub.id = id

	logger.Info(ctx, "Listening to emergency feed")

	return sub, nil
}

// lastEmitted returns the ReportedAt of the newest emitted event.
func (l *Listener) lastEmitted() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.emittedAt
}

// handleSnapshot parses a snapshot, forwards it and emits the newest event if it is new.
func (l *Listener) handleSnapshot(ctx context.Context, snapshot Snapshot, handlers Handlers) {
	events, errs := ParseSnapshot(snapshot)
	for _, err := range errs {
		logger.WarnKV(ctx, "Skipping feed record", "error", err)
	}

	// Every snapshot replaces the previous one, an empty one included.
	if handlers.OnSnapshot != nil {
		handlers.OnSnapshot(events)
	}

	latest, ok := latestOf(events)
	if !ok {
		logger.DebugKV(ctx, "Snapshot holds no valid reports", "records", len(snapshot))
		return
	}

	l.mu.Lock()
	isNew := latest.NewerThan(l.emittedAt)
	if isNew {
		l.emittedAt = latest.ReportedAt
	}
	l.mu.Unlock()

	if !isNew {
		logger.DebugKV(ctx, "No newer report in snapshot", "latest_id", latest.ID)
		return
	}

	logger.InfoKV(ctx, "New emergency report", "id", latest.ID, "reported_at", latest.ReportedAt)

	handlers.OnEvent(latest)
}

// Subscription is a running feed subscription.
type Subscription struct {
	// feed is asked to unsubscribe on Stop.
	feed Feed
	// id is the handle returned by the feed.
	id SubscriptionID
	// gate drops callbacks once Stop has been called.
	gate gate.Gate
}

// Stop unsubscribes. Once Stop returns no handler of this subscription runs again.
func (s *Subscription) Stop() {
	if s == nil || !s.gate.Close() {
		return
	}

	s.feed.Unsubscribe(s.id)
}
