package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestGate_RunAndClose checks that callbacks stop after Close.
func TestGate_RunAndClose(t *testing.T) {
	t.Parallel()

	var (
		g     Gate
		calls int
	)

	require.True(t, g.Run(func() { calls++ }))
	require.True(t, g.Close())
	require.False(t, g.Close())
	require.True(t, g.Closed())
	require.False(t, g.Run(func() { calls++ }))
	require.Equal(t, 1, calls)
}

// TestGate_CloseWaitsForInFlight verifies Close blocks while a callback runs.
func TestGate_CloseWaitsForInFlight(t *testing.T) {
	t.Parallel()

	var g Gate

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})

	go g.Run(func() {
		close(started)
		<-release
		close(finished)
	})

	<-started

	closed := make(chan struct{})

	go func() {
		g.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-closed

	select {
	case <-finished:
	default:
		t.Fatal("callback did not finish before Close returned")
	}
}
