package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

type fakeService struct {
	state    tracking.AlertState
	overlays mapsurface.Snapshot
	err      error
}

func (f *fakeService) State(context.Context) (tracking.AlertState, string, error) {
	return f.state, "r0", f.err
}

func (f *fakeService) Overlays(context.Context) (mapsurface.Snapshot, error) {
	return f.overlays, f.err
}

func serve(t *testing.T, service Service, path string) *httptest.ResponseRecorder {
	t.Helper()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	NewRouter(context.Background(), service).ServeHTTP(recorder, request)

	return recorder
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()

	recorder := serve(t, new(fakeService), "/healthz")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "ok", recorder.Body.String())
}

func TestRouter_Overlays(t *testing.T) {
	t.Parallel()

	surface := mapsurface.NewMemory()
	at := tracking.Coordinates{Latitude: 7.0780, Longitude: 125.6137}
	surface.AddOrMoveMarker("live-marker", at, "Your Location")
	surface.AddOrMoveCircle("live-circle", at, 100, mapsurface.LiveCircleStyle)

	recorder := serve(t, &fakeService{overlays: surface.Snapshot()}, "/api/overlays")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "application/geo+json", recorder.Header().Get("Content-Type"))

	var body struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))

	require.Equal(t, "FeatureCollection", body.Type)
	require.Len(t, body.Features, 2)
	require.Equal(t, "Point", body.Features[0].Geometry.Type)
	require.Equal(t, []float64{125.6137, 7.0780}, body.Features[0].Geometry.Coordinates)
	require.InDelta(t, 2, body.Meta["revision"], 0)
}

func TestRouter_State(t *testing.T) {
	t.Parallel()

	recorder := serve(t, &fakeService{state: tracking.AlertState{Phase: tracking.PhaseRouteShown}}, "/api/state")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "route_shown", body["phase"])
	require.Equal(t, "r0", body["selectedHistoryId"])
}

func TestRouter_Errors(t *testing.T) {
	t.Parallel()

	recorder := serve(t, &fakeService{err: tracking.ErrClosed}, "/api/state")
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	recorder = serve(t, &fakeService{err: tracking.ErrRouteUnavailable}, "/api/overlays")
	require.Equal(t, http.StatusInternalServerError, recorder.Code)

	recorder = serve(t, new(fakeService), "/api/missing")
	require.Equal(t, http.StatusNotFound, recorder.Code)
}
