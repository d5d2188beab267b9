package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/gate"
	"github.com/oshokin/trackguard/internal/logger"
)

// Options are the sampling options handed to the position source.
type Options struct {
	// HighAccuracy asks the source for its most precise fixes only.
	HighAccuracy bool
	// MaxCacheAge is the oldest fix the source may deliver. Zero accepts only fixes
	// younger than Timeout; a negative value accepts fixes of any age.
	MaxCacheAge time.Duration
	// Timeout is how long to wait for a fix before reporting a sampling failure.
	Timeout time.Duration
}

// WatchID identifies a running watch on a Source.
type WatchID uint64

// Source is the position source capability. Callbacks run on goroutines
// owned by the source and may fire until Unwatch returns.
type Source interface {
	Watch(opts Options, onFix func(tracking.Position), onErr func(error)) (WatchID, error)
	Unwatch(id WatchID)
}

// errNilCallback is returned when Start is called without a sample callback.
var errNilCallback = errors.New("sample callback must be provided")

// Tracker samples the live position from a Source.
type Tracker struct {
	// source delivers the raw fixes.
	source Source
}

// New creates a tracker backed by source.
func New(source Source) *Tracker {
	return &Tracker{
		source: source,
	}
}

// Start begins sampling. Every valid fix is handed to onSample; sampling
// failures are handed to onError wrapped in tracking.ErrSamplingFailure and
// do not end the subscription.
func (t *Tracker) Start(
	ctx context.Context,
	onSample func(tracking.Position),
	onError func(error),
	opts Options,
) (*Subscription, error) {
	if onSample == nil {
		return nil, errNilCallback
	}

	ctx = logger.WithName(ctx, "tracker")

	sub := &Subscription{
		source: t.source,
	}

	handleFix := func(pos tracking.Position) {
		if !pos.Valid() {
			sub.deliver(func() {
				reportError(ctx, onError, fmt.Errorf("%w: fix outside WGS84 range", tracking.ErrSamplingFailure))
			})

			return
		}

		sub.deliver(func() { onSample(pos) })
	}

	handleErr := func(err error) {
		if !errors.Is(err, tracking.ErrSamplingFailure) {
			err = fmt.Errorf("%w: %w", tracking.ErrSamplingFailure, err)
		}

		sub.deliver(func() { reportError(ctx, onError, err) })
	}

	id, err := t.source.Watch(opts, handleFix, handleErr)
	if err != nil {
		return nil, fmt.Errorf("watch position: %w", err)
	}

	sub.id = id

	logger.InfoKV(ctx, "Position tracking started",
		"high_accuracy", opts.HighAccuracy,
		"max_cache_age", opts.MaxCacheAge.String(),
		"timeout", opts.Timeout.String())

	return sub, nil
}

// reportError logs a sampling failure and forwards it.
func reportError(ctx context.Context, onError func(error), err error) {
	logger.WarnKV(ctx, "Position sampling failed", "error", err)

	if onError != nil {
		onError(err)
	}
}

// Subscription is a running position watch.
type Subscription struct {
	// source is asked to unwatch on Stop.
	source Source
	// id is the watch handle returned by the source.
	id WatchID

	// gate drops callbacks once Stop has been called.
	gate gate.Gate
}

// deliver runs fn unless the subscription was stopped.
func (s *Subscription) deliver(fn func()) {
	s.gate.Run(fn)
}

// Stop unsubscribes from the source. Once Stop returns no callback of this
// subscription runs again. Stop must not be called from inside a callback.
func (s *Subscription) Stop() {
	if s == nil {
		return
	}

	if !s.gate.Close() {
		return
	}

	s.source.Unwatch(s.id)
}
