package redisfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/oshokin/trackguard/internal/feed"
)

// errChannelClosed is returned when the pub/sub channel is closed under us.
var errChannelClosed = errors.New("pub/sub channel closed")

// Store is the subset of the Redis client used by the feed.
type Store interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Feed is a feed.Feed reading reports from a Redis hash. Writers store each
// report as a JSON value under its ID in the hash and publish any message on
// the change channel; every notification triggers a full re-read.
type Feed struct {
	// store is the Redis client.
	store Store
	// channel announces changes of the hash.
	channel string
	// timeout bounds each HGETALL.
	timeout time.Duration

	mu     sync.Mutex
	nextID feed.SubscriptionID
	subs   map[feed.SubscriptionID]*subscription
}

// subscription is one running listener goroutine.
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to Redis at url (redis://...) and returns a feed and a close function.
func Dial(ctx context.Context, url, channel string, timeout time.Duration) (*Feed, func() error, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err = client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	return New(client, channel, timeout), client.Close, nil
}

// New creates a feed on top of an existing client.
func New(store Store, channel string, timeout time.Duration) *Feed {
	return &Feed{
		store:   store,
		channel: channel,
		timeout: timeout,
		subs:    make(map[feed.SubscriptionID]*subscription),
	}
}

// Subscribe reads key once and again on every change notification.
func (f *Feed) Subscribe(key string, onSnapshot func(feed.Snapshot), onErr func(error)) (feed.SubscriptionID, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[id] = s
	f.mu.Unlock()

	go func() {
		defer close(s.done)
		f.run(ctx, key, onSnapshot, onErr)
	}()

	return id, nil
}

// Unsubscribe stops the listener goroutine and waits for it.
func (f *Feed) Unsubscribe(id feed.SubscriptionID) {
	f.mu.Lock()
	s, ok := f.subs[id]
	delete(f.subs, id)
	f.mu.Unlock()

	if !ok {
		return
	}

	s.cancel()
	<-s.done
}

// run keeps the pub/sub subscription alive until ctx is canceled.
func (f *Feed) run(ctx context.Context, key string, onSnapshot func(feed.Snapshot), onErr func(error)) {
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		err := f.listen(ctx, key, onSnapshot, onErr, retry.Reset)
		if ctx.Err() != nil {
			return
		}

		onErr(fmt.Errorf("redis feed: %w", err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry.NextBackOff()):
		}
	}
}

// listen subscribes to the change channel and re-reads key per message.
func (f *Feed) listen(
	ctx context.Context,
	key string,
	onSnapshot func(feed.Snapshot),
	onErr func(error),
	onConnected func(),
) error {
	pubsub := f.store.Subscribe(ctx, f.channel)

	defer func() {
		_ = pubsub.Close()
	}()

	// Receive waits for the subscription confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	onConnected()

	// Read once so reports written before we subscribed are seen.
	if err := f.read(ctx, key, onSnapshot); err != nil {
		onErr(err)
	}

	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-messages:
			if !ok {
				return fmt.Errorf("%w: %s", errChannelClosed, f.channel)
			}

			if err := f.read(ctx, key, onSnapshot); err != nil {
				onErr(err)
			}
		}
	}
}

// read loads the hash and hands it over as a snapshot.
func (f *Feed) read(ctx context.Context, key string, onSnapshot func(feed.Snapshot)) error {
	readCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	values, err := f.store.HGetAll(readCtx, key).Result()
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	onSnapshot(toSnapshot(values))

	return nil
}

// toSnapshot converts hash fields into raw records. Values that are not
// JSON are passed through as JSON strings so the listener rejects them.
func toSnapshot(values map[string]string) feed.Snapshot {
	snapshot := make(feed.Snapshot, len(values))

	for id, value := range values {
		raw := json.RawMessage(value)
		if !json.Valid(raw) {
			raw, _ = json.Marshal(value)
		}

		snapshot[id] = raw
	}

	return snapshot
}
