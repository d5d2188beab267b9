package gpsd

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/tracker"
)

// TestParseReport covers fix mode, staleness and accuracy handling.
func TestParseReport(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 10, 0, time.UTC)

	cases := []struct {
		name     string
		line     string
		opts     tracker.Options
		ok       bool
		wantErr  bool
		accuracy float64
	}{
		{
			name:     "3d fix",
			line:     `{"class":"TPV","mode":3,"time":"2024-05-01T10:00:09.000Z","lat":7.078,"lon":125.6137,"epx":4.5,"epy":6.0}`,
			opts:     tracker.Options{HighAccuracy: true},
			ok:       true,
			accuracy: 6,
		},
		{
			name: "2d fix rejected in high accuracy mode",
			line: `{"class":"TPV","mode":2,"lat":7.078,"lon":125.6137}`,
			opts: tracker.Options{HighAccuracy: true},
		},
		{
			name:     "2d fix accepted otherwise",
			line:     `{"class":"TPV","mode":2,"lat":7.078,"lon":125.6137,"eph":12}`,
			ok:       true,
			accuracy: 12,
		},
		{
			name: "stale fix",
			line: `{"class":"TPV","mode":3,"time":"2024-05-01T09:59:00Z","lat":7.078,"lon":125.6137}`,
			opts: tracker.Options{MaxCacheAge: 5 * time.Second},
		},
		{
			name: "default age limit follows the sampling timeout",
			line: `{"class":"TPV","mode":3,"time":"2024-05-01T10:00:00Z","lat":7.078,"lon":125.6137,"eph":2}`,
			opts: tracker.Options{Timeout: 5 * time.Second},
		},
		{
			name:     "fix within the sampling timeout",
			line:     `{"class":"TPV","mode":3,"time":"2024-05-01T10:00:07Z","lat":7.078,"lon":125.6137,"eph":2}`,
			opts:     tracker.Options{Timeout: 5 * time.Second},
			ok:       true,
			accuracy: 2,
		},
		{
			name: "cached fix older than the default read timeout",
			line: `{"class":"TPV","mode":3,"time":"2024-05-01T09:00:00Z","lat":7.078,"lon":125.6137}`,
		},
		{
			name:     "negative cache age accepts any fix",
			line:     `{"class":"TPV","mode":3,"time":"2024-05-01T09:00:00Z","lat":7.078,"lon":125.6137,"eph":2}`,
			opts:     tracker.Options{MaxCacheAge: -1},
			ok:       true,
			accuracy: 2,
		},
		{
			name: "other class",
			line: `{"class":"SKY","satellites":[]}`,
		},
		{
			name: "no coordinates",
			line: `{"class":"TPV","mode":1}`,
		},
		{
			name:    "garbage",
			line:    `{"class":`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			pos, ok, err := ParseReport([]byte(tc.line), tc.opts, now)
			if tc.wantErr {
				require.ErrorIs(t, err, tracking.ErrSamplingFailure)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.ok, ok)

			if ok {
				require.InDelta(t, 7.078, pos.Latitude, 1e-9)
				require.InDelta(t, tc.accuracy, pos.AccuracyRadiusMeters, 1e-9)
			}
		})
	}
}

// TestSource_WatchAndUnwatch runs the source against a fake gpsd daemon.
func TestSource_WatchAndUnwatch(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() {
		_ = listener.Close()
	}()

	commands := make(chan string, 1)

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}

		defer func() {
			_ = conn.Close()
		}()

		line, _ := bufio.NewReader(conn).ReadString('\n')
		commands <- line

		_, _ = conn.Write([]byte(`{"class":"VERSION","release":"3.25"}` + "\n"))
		_, _ = conn.Write([]byte(`{"class":"TPV","mode":3,"lat":7.078,"lon":125.6137,"epx":3,"epy":3}` + "\n"))

		// Keep the connection open until the client leaves.
		_, _ = bufio.NewReader(conn).ReadString('\n')
	}()

	fixes := make(chan tracking.Position, 4)
	source := New(listener.Addr().String(), time.Second)

	id, err := source.Watch(
		tracker.Options{HighAccuracy: true, Timeout: 5 * time.Second},
		func(p tracking.Position) { fixes <- p },
		func(error) {},
	)
	require.NoError(t, err)

	select {
	case cmd := <-commands:
		require.Equal(t, watchCommand, cmd)
	case <-time.After(3 * time.Second):
		t.Fatal("watch command not received")
	}

	select {
	case fix := <-fixes:
		require.InDelta(t, 125.6137, fix.Longitude, 1e-9)
		require.InDelta(t, 3, fix.AccuracyRadiusMeters, 1e-9)
	case <-time.After(3 * time.Second):
		t.Fatal("fix not delivered")
	}

	source.Unwatch(id)
	source.Unwatch(id)
}

// TestSource_ReportSplitByTimeout joins a report whose halves straddle a read deadline.
func TestSource_ReportSplitByTimeout(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() {
		_ = listener.Close()
	}()

	const timeout = 100 * time.Millisecond

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}

		defer func() {
			_ = conn.Close()
		}()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadString('\n')

		_, _ = conn.Write([]byte(`{"class":"TPV","mode":3,"lat":7.078,`))
		time.Sleep(3 * timeout)
		_, _ = conn.Write([]byte(`"lon":125.6137,"eph":8}` + "\n"))

		_, _ = reader.ReadString('\n')
	}()

	fixes := make(chan tracking.Position, 4)
	errs := make(chan error, 16)
	source := New(listener.Addr().String(), time.Second)

	id, err := source.Watch(
		tracker.Options{Timeout: timeout},
		func(p tracking.Position) { fixes <- p },
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	)
	require.NoError(t, err)

	defer source.Unwatch(id)

	select {
	case fix := <-fixes:
		require.InDelta(t, 7.078, fix.Latitude, 1e-9)
		require.InDelta(t, 125.6137, fix.Longitude, 1e-9)
		require.InDelta(t, 8, fix.AccuracyRadiusMeters, 1e-9)
	case <-time.After(3 * time.Second):
		t.Fatal("split report not delivered")
	}

	select {
	case err := <-errs:
		require.ErrorIs(t, err, tracking.ErrSamplingFailure)
	default:
		t.Fatal("read deadline not reported")
	}
}
