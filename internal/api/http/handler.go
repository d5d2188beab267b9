package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/logger"
	"github.com/oshokin/trackguard/internal/mapsurface"
)

// Service is what the map endpoints read from.
type Service interface {
	State(ctx context.Context) (tracking.AlertState, string, error)
	Overlays(ctx context.Context) (mapsurface.Snapshot, error)
}

// stateResponse is the body of GET /api/state.
type stateResponse struct {
	Alert             tracking.AlertState `json:"alert"`
	Phase             string              `json:"phase"`
	SelectedHistoryID string              `json:"selectedHistoryId,omitempty"`
}

// NewRouter returns the HTTP routes serving the map overlays.
func NewRouter(ctx context.Context, service Service) *mux.Router {
	ctx = logger.WithName(ctx, "http")

	router := mux.NewRouter()
	router.Use(logRequests(ctx))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/overlays", func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := service.Overlays(r.Context())
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, "application/geo+json", snapshot.GeoJSON())
	}).Methods(http.MethodGet)

	api.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		state, selected, err := service.State(r.Context())
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, "application/json", stateResponse{
			Alert:             state,
			Phase:             state.Phase.String(),
			SelectedHistoryID: selected,
		})
	}).Methods(http.MethodGet)

	return router
}

// logRequests logs every request at debug level.
func logRequests(ctx context.Context) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.DebugKV(ctx, "HTTP request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnKV(ctx, "Unable to write response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, tracking.ErrClosed):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	default:
		logger.ErrorKV(ctx, "HTTP request failed", "error", err)
	}

	http.Error(w, http.StatusText(code), code)
}
