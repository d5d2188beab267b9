package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackguard/internal/domain/tracking"
)

// fakeFeed lets tests push snapshots by hand.
type fakeFeed struct {
	mu           sync.Mutex
	path         string
	onSnapshot   func(Snapshot)
	onErr        func(error)
	unsubscribed int
}

// Subscribe records the callbacks.
func (f *fakeFeed) Subscribe(path string, onSnapshot func(Snapshot), onErr func(error)) (SubscriptionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.path = path
	f.onSnapshot = onSnapshot
	f.onErr = onErr

	return 1, nil
}

// Unsubscribe counts calls and keeps the callbacks for late delivery.
func (f *fakeFeed) Unsubscribe(SubscriptionID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unsubscribed++
}

func (f *fakeFeed) push(snapshot Snapshot) {
	f.mu.Lock()
	fn := f.onSnapshot
	f.mu.Unlock()
	fn(snapshot)
}

func report(lat, lng float64, ms int64, message string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"latitude":%v,"longitude":%v,"timestamp":%d,"message":%q}`, lat, lng, ms, message))
}

// TestListener_EmitsOncePerNewerReport covers new, duplicate and stale snapshots.
func TestListener_EmitsOncePerNewerReport(t *testing.T) {
	t.Parallel()

	feed := new(fakeFeed)
	listener := NewListener(feed, "reports")

	var (
		events    []tracking.EmergencyEvent
		snapshots int
		lastSet   []tracking.EmergencyEvent
	)

	sub, err := listener.Subscribe(context.Background(), Handlers{
		OnEvent: func(e tracking.EmergencyEvent) { events = append(events, e) },
		OnSnapshot: func(set []tracking.EmergencyEvent) {
			snapshots++
			lastSet = set
		},
	})
	require.NoError(t, err)
	require.Equal(t, "reports", feed.path)

	feed.push(Snapshot{"e1": report(7.08, 125.62, 1000, "first")})
	// Same maximum again, e.g. an unrelated field changed.
	feed.push(Snapshot{"e1": report(7.08, 125.62, 1000, "first edited")})
	feed.push(Snapshot{"e1": report(7.08, 125.62, 1000, "first"), "e2": report(7.09, 125.63, 2000, "second")})
	// An older report added later does not alert.
	feed.push(Snapshot{
		"e1": report(7.08, 125.62, 1000, "first"),
		"e2": report(7.09, 125.63, 2000, "second"),
		"e0": report(7, 125, 500, "late"),
	})
	require.Len(t, lastSet, 3)

	// Only malformed records: no event, and the set is emptied like any deletion.
	feed.push(Snapshot{"bad": json.RawMessage(`{"message":"x"}`)})
	require.Empty(t, lastSet)

	feed.push(Snapshot{})
	require.Empty(t, lastSet)

	require.Len(t, events, 2)
	require.Equal(t, "e1", events[0].ID)
	require.Equal(t, "e2", events[1].ID)
	require.Equal(t, 6, snapshots)
	require.Equal(t, int64(2000), listener.lastEmitted().UnixMilli())

	sub.Stop()
	sub.Stop()
	require.Equal(t, 1, feed.unsubscribed)

	// Late delivery after Stop is dropped.
	feed.push(Snapshot{"e3": report(1, 1, 3000, "after stop")})
	require.Len(t, events, 2)
}

// TestListener_ForwardsErrors checks that transport errors reach OnError.
func TestListener_ForwardsErrors(t *testing.T) {
	t.Parallel()

	feed := new(fakeFeed)

	var got []error

	_, err := NewListener(feed, "reports").Subscribe(context.Background(), Handlers{
		OnEvent: func(tracking.EmergencyEvent) {},
		OnError: func(err error) { got = append(got, err) },
	})
	require.NoError(t, err)

	feed.onErr(errors.New("stream dropped"))
	require.Len(t, got, 1)

	_, err = NewListener(feed, "reports").Subscribe(context.Background(), Handlers{})
	require.ErrorIs(t, err, errNoEventHandler)
}
