package gpsd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/tracker"
)

// watchCommand enables JSON reports on a gpsd connection.
const watchCommand = `?WATCH={"enable":true,"json":true};` + "\n"

const (
	// mode2D and mode3D are the gpsd fix modes.
	mode2D = 2
	mode3D = 3

	// defaultReadTimeout bounds a read when no sampling timeout is configured.
	defaultReadTimeout = time.Minute
)

// Source is a tracker.Source reading TPV reports from a gpsd daemon.
type Source struct {
	// address is the gpsd host:port.
	address string
	// dialTimeout bounds each connection attempt.
	dialTimeout time.Duration
	// now returns the current time, replaced in tests.
	now func() time.Time

	mu      sync.Mutex
	nextID  tracker.WatchID
	watches map[tracker.WatchID]*watch
}

// watch is one running reader goroutine.
type watch struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a gpsd source for the given address.
func New(address string, dialTimeout time.Duration) *Source {
	return &Source{
		address:     address,
		dialTimeout: dialTimeout,
		now:         time.Now,
		watches:     make(map[tracker.WatchID]*watch),
	}
}

// Watch starts a reader goroutine that connects to gpsd, reconnecting with
// exponential backoff until Unwatch is called.
func (s *Source) Watch(
	opts tracker.Options,
	onFix func(tracking.Position),
	onErr func(error),
) (tracker.WatchID, error) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watches[id] = w
	s.mu.Unlock()

	go func() {
		defer close(w.done)
		s.run(ctx, opts, onFix, onErr)
	}()

	return id, nil
}

// Unwatch stops the reader goroutine and waits for it to exit.
func (s *Source) Unwatch(id tracker.WatchID) {
	s.mu.Lock()
	w, ok := s.watches[id]
	delete(s.watches, id)
	s.mu.Unlock()

	if !ok {
		return
	}

	w.cancel()
	<-w.done
}

// run keeps a gpsd session alive until ctx is canceled.
func (s *Source) run(ctx context.Context, opts tracker.Options, onFix func(tracking.Position), onErr func(error)) {
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		err := s.session(ctx, opts, onFix, onErr, retry.Reset)
		if ctx.Err() != nil {
			return
		}

		onErr(fmt.Errorf("%w: gpsd session: %w", tracking.ErrSamplingFailure, err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry.NextBackOff()):
		}
	}
}

// session runs one connection. onConnected is called once the watch command was accepted.
func (s *Source) session(
	ctx context.Context,
	opts tracker.Options,
	onFix func(tracking.Position),
	onErr func(error),
	onConnected func(),
) error {
	dialer := net.Dialer{Timeout: s.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.address, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
	}()

	if _, err = conn.Write([]byte(watchCommand)); err != nil {
		return fmt.Errorf("send watch command: %w", err)
	}

	onConnected()

	readTimeout := opts.Timeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	reader := bufio.NewReader(conn)
	lastFix := s.now()

	// pending holds a report cut short by a read deadline.
	var pending []byte

	for {
		if err = conn.SetReadDeadline(s.now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() == nil {
				pending = append(pending, line...)

				onErr(fmt.Errorf("%w: no fix within %s", tracking.ErrSamplingFailure, readTimeout))

				continue
			}

			return fmt.Errorf("read report: %w", err)
		}

		if len(pending) > 0 {
			line = append(pending, line...)
			pending = nil
		}

		pos, ok, err := ParseReport(line, opts, s.now())
		if err != nil {
			onErr(err)
			continue
		}

		if ok {
			lastFix = s.now()
			onFix(pos)

			continue
		}

		// Reports without a usable fix still count against the sampling timeout.
		if s.now().Sub(lastFix) > readTimeout {
			lastFix = s.now()
			onErr(fmt.Errorf("%w: no usable fix within %s", tracking.ErrSamplingFailure, readTimeout))
		}
	}
}

// tpv is the subset of a gpsd TPV report used for positions.
type tpv struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Time  string   `json:"time"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Epx   float64  `json:"epx"`
	Epy   float64  `json:"epy"`
	Eph   float64  `json:"eph"`
}

// maxFixAge is the oldest fix accepted under opts. A zero MaxCacheAge accepts
// only fixes younger than the sampling timeout; a negative one accepts any age.
func maxFixAge(opts tracker.Options) (time.Duration, bool) {
	switch {
	case opts.MaxCacheAge > 0:
		return opts.MaxCacheAge, true
	case opts.MaxCacheAge < 0:
		return 0, false
	case opts.Timeout > 0:
		return opts.Timeout, true
	default:
		return defaultReadTimeout, true
	}
}

// ParseReport turns one gpsd JSON line into a position. ok is false for
// reports that carry no acceptable fix (other classes, too weak a fix mode,
// stale fixes). Lines that are not valid JSON return an error.
func ParseReport(line []byte, opts tracker.Options, now time.Time) (tracking.Position, bool, error) {
	var report tpv
	if err := json.Unmarshal(line, &report); err != nil {
		return tracking.Position{}, false, fmt.Errorf("%w: decode gpsd report: %w", tracking.ErrSamplingFailure, err)
	}

	if report.Class != "TPV" || report.Lat == nil || report.Lon == nil {
		return tracking.Position{}, false, nil
	}

	minMode := mode2D
	if opts.HighAccuracy {
		minMode = mode3D
	}

	if report.Mode < minMode {
		return tracking.Position{}, false, nil
	}

	capturedAt := now
	if report.Time != "" {
		parsed, err := time.Parse(time.RFC3339Nano, report.Time)
		if err == nil {
			capturedAt = parsed
		}
	}

	if limit, ok := maxFixAge(opts); ok && now.Sub(capturedAt) > limit {
		return tracking.Position{}, false, nil
	}

	accuracy := math.Max(report.Epx, report.Epy)
	if accuracy == 0 {
		accuracy = report.Eph
	}

	return tracking.Position{
		Coordinates: tracking.Coordinates{
			Latitude:  *report.Lat,
			Longitude: *report.Lon,
		},
		AccuracyRadiusMeters: accuracy,
		CapturedAt:           capturedAt,
	}, true, nil
}
