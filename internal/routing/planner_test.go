package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackguard/internal/domain/tracking"
)

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) Route(ctx context.Context, origin, destination tracking.Coordinates) (tracking.Route, error) {
	args := m.Called(ctx, origin, destination)

	return args.Get(0).(tracking.Route), args.Error(1) //nolint:forcetypeassert // Test double.
}

type result struct {
	route tracking.Route
	err   error
}

func TestPlanner_DeliversThroughScheduler(t *testing.T) {
	t.Parallel()

	origin := tracking.Coordinates{Latitude: 7.0780, Longitude: 125.6137}
	destination := tracking.Coordinates{Latitude: 7.08, Longitude: 125.615}
	want := tracking.Route{Waypoints: []tracking.Coordinates{origin, destination}}

	router := new(mockRouter)
	router.On("Route", mock.Anything, origin, destination).Return(want, nil).Once()

	scheduled := make(chan func(), 1)
	planner := NewPlanner(router, func(fn func()) { scheduled <- fn })
	t.Cleanup(planner.Close)

	results := make(chan result, 1)
	planner.Request(origin, destination, func(route tracking.Route, err error) {
		results <- result{route: route, err: err}
	})

	select {
	case fn := <-scheduled:
		require.Empty(t, results)
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("result was never scheduled")
	}

	got := <-results
	require.NoError(t, got.err)
	require.Equal(t, want, got.route)
	router.AssertExpectations(t)
}

func TestPlanner_PassesErrors(t *testing.T) {
	t.Parallel()

	router := new(mockRouter)
	router.On("Route", mock.Anything, mock.Anything, mock.Anything).
		Return(tracking.Route{}, tracking.ErrRouteUnavailable).Once()

	planner := NewPlanner(router, nil)
	t.Cleanup(planner.Close)

	results := make(chan result, 1)
	planner.Request(tracking.Coordinates{}, tracking.Coordinates{}, func(route tracking.Route, err error) {
		results <- result{route: route, err: err}
	})

	select {
	case got := <-results:
		require.ErrorIs(t, got.err, tracking.ErrRouteUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
}

func TestPlanner_CloseDiscardsResults(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	router := new(mockRouter)
	router.On("Route", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-args.Get(0).(context.Context).Done() //nolint:forcetypeassert // Test double.
		}).
		Return(tracking.Route{}, context.Canceled).Once()

	scheduled := make(chan func(), 1)
	planner := NewPlanner(router, func(fn func()) { scheduled <- fn })

	called := make(chan struct{}, 1)
	planner.Request(tracking.Coordinates{}, tracking.Coordinates{}, func(tracking.Route, error) {
		called <- struct{}{}
	})

	<-started
	planner.Close()

	select {
	case fn := <-scheduled:
		fn()
	case <-time.After(100 * time.Millisecond):
	}

	require.Empty(t, called)

	// Requests after Close are ignored.
	planner.Request(tracking.Coordinates{}, tracking.Coordinates{}, func(tracking.Route, error) {
		called <- struct{}{}
	})
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, called)
}
