package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oshokin/trackguard/internal/domain/tracking"
)

// osrmOK is the success code of the OSRM HTTP API.
const osrmOK = "Ok"

// OSRM is a Router backed by the OSRM HTTP route service.
type OSRM struct {
	// baseURL is the service root, e.g. https://router.project-osrm.org.
	baseURL string
	// profile is the routing profile (driving, walking, cycling).
	profile string
	// httpClient performs the requests; its timeout is the only route timeout.
	httpClient *http.Client
}

// NewOSRM creates an OSRM router.
func NewOSRM(baseURL, profile string, httpClient *http.Client) *OSRM {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OSRM{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		profile:    profile,
		httpClient: httpClient,
	}
}

// osrmResponse is the subset of the route response used here.
type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route implements Router.
func (o *OSRM) Route(ctx context.Context, origin, destination tracking.Coordinates) (tracking.Route, error) {
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s;%s",
		o.baseURL, url.PathEscape(o.profile), lngLat(origin), lngLat(destination))

	query := url.Values{}
	query.Set("overview", "full")
	query.Set("geometries", "geojson")
	query.Set("steps", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return tracking.Route{}, fmt.Errorf("%w: build request: %w", tracking.ErrRouteUnavailable, err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return tracking.Route{}, fmt.Errorf("%w: request: %w", tracking.ErrRouteUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var body osrmResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return tracking.Route{}, fmt.Errorf("%w: status %d: decode: %w", tracking.ErrRouteUnavailable, resp.StatusCode, err)
	}

	if body.Code != osrmOK || len(body.Routes) == 0 {
		return tracking.Route{}, fmt.Errorf("%w: osrm %s: %s", tracking.ErrRouteUnavailable, body.Code, body.Message)
	}

	best := body.Routes[0]
	waypoints := make([]tracking.Coordinates, 0, len(best.Geometry.Coordinates))

	for _, point := range best.Geometry.Coordinates {
		if len(point) < 2 {
			continue
		}

		waypoints = append(waypoints, tracking.Coordinates{Latitude: point[1], Longitude: point[0]})
	}

	if len(waypoints) < 2 {
		return tracking.Route{}, fmt.Errorf("%w: route geometry has %d points", tracking.ErrRouteUnavailable, len(waypoints))
	}

	return tracking.Route{
		Waypoints:       waypoints,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}, nil
}

// lngLat formats a point the way OSRM expects it.
func lngLat(c tracking.Coordinates) string {
	return strconv.FormatFloat(c.Longitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', 6, 64)
}
