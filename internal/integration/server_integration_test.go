package integration

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackguard/internal/config"
	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/service/console"
	"github.com/oshokin/trackguard/internal/service/server"
)

// startGPSD serves a fixed 3D fix to every client that sends a watch command.
func startGPSD(t *testing.T, lat, lon float64) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, acceptErr := l.Accept()
			if acceptErr != nil {
				return
			}

			go func() {
				defer func() { _ = conn.Close() }()

				// Wait for the watch command before streaming reports.
				if _, readErr := bufio.NewReader(conn).ReadBytes('\n'); readErr != nil {
					return
				}

				for {
					report := fmt.Sprintf(`{"class":"TPV","mode":3,"time":%q,"lat":%f,"lon":%f,"epx":4,"epy":6}`+"\n",
						time.Now().UTC().Format(time.RFC3339Nano), lat, lon)
					if _, writeErr := conn.Write([]byte(report)); writeErr != nil {
						return
					}

					time.Sleep(100 * time.Millisecond)
				}
			}()
		}
	}()

	return l.Addr().String()
}

// startFeed serves one emergency report over the realtime streaming protocol.
func startFeed(t *testing.T) string {
	t.Helper()

	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")

		flusher, _ := w.(http.Flusher)

		_, _ = fmt.Fprint(w, `event: put`+"\n"+
			`data: {"path":"/","data":{"r1":{"latitude":7.0780,"longitude":125.6137,"timestamp":1700000000000,"message":"Fire at the market"}}}`+"\n\n")
		flusher.Flush()

		<-r.Context().Done()
	}))
	t.Cleanup(feedServer.Close)

	return feedServer.URL
}

// startOSRM answers every route request with a two point line.
func startOSRM(t *testing.T) string {
	t.Helper()

	osrmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":420,"duration":60,`+
			`"geometry":{"coordinates":[[125.6100,7.0700],[125.6137,7.0780]]}}]}`)
	}))
	t.Cleanup(osrmServer.Close)

	return osrmServer.URL
}

// freeAddress reserves a free local port.
func freeAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// TestServer_AlertLifecycle runs the real server against fake backends and
// drives the alert through the operator API.
func TestServer_AlertLifecycle(t *testing.T) {
	t.Parallel()

	addr := freeAddress(t)

	cfg := config.Default()
	cfg.ListenAddress = addr
	cfg.Feed.URL = startFeed(t)
	cfg.Tracker.GPSDAddress = startGPSD(t, 7.0700, 125.6100)
	cfg.Routing.OSRMURL = startOSRM(t)

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)

	go func() {
		runErr <- server.Run(ctx, &server.Options{ConfigPath: cfgPath})
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-runErr:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	client, err := console.Dial(ctx, addr, console.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	// Wait until the report and a live fix arrived.
	require.Eventually(t, func() bool {
		state, stateErr := client.GetState(ctx)

		return stateErr == nil && state.Alert.Phase == tracking.PhasePending && state.Position != nil
	}, 5*time.Second, 50*time.Millisecond)

	history, err := client.ListHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history.Entries, 1)
	require.Equal(t, "r1", history.Entries[0].Event.ID)

	shown, err := client.ShowOnMap(ctx)
	require.NoError(t, err)
	require.Equal(t, tracking.PhaseRouteShown, shown.Alert.Phase)

	require.Eventually(t, func() bool {
		state, stateErr := client.GetState(ctx)

		return stateErr == nil && state.Alert.RouteDrawn
	}, 5*time.Second, 50*time.Millisecond)

	overlays, err := client.GetOverlays(ctx)
	require.NoError(t, err)

	kinds := make(map[any]int)
	for _, feature := range overlays.Overlays.Features {
		kinds[feature.Properties["kind"]]++
	}

	require.Equal(t, 1, kinds["route"])
	require.Equal(t, 2, kinds["circle"])
	require.Equal(t, 2, kinds["marker"])
}
