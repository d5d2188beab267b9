package routing

import (
	"context"

	"github.com/oshokin/trackguard/internal/domain/tracking"
)

// Router computes a route between two points. Every failure is reported as
// an error wrapping tracking.ErrRouteUnavailable.
type Router interface {
	Route(ctx context.Context, origin, destination tracking.Coordinates) (tracking.Route, error)
}
