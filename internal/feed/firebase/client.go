package firebase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oshokin/trackguard/internal/feed"
)

// Stream event names sent by the Realtime Database REST API.
const (
	eventPut         = "put"
	eventPatch       = "patch"
	eventCancel      = "cancel"
	eventAuthRevoked = "auth_revoked"
)

var (
	// errStreamCanceled is returned when the server cancels the stream, usually on a rules change.
	errStreamCanceled = errors.New("stream canceled by server")
	// errAuthRevoked is returned when the auth token expired.
	errAuthRevoked = errors.New("auth token revoked")
	// errUnexpectedStatus is returned for non-200 responses.
	errUnexpectedStatus = errors.New("unexpected status")
)

// Client is a feed.Feed backed by the Firebase Realtime Database REST
// streaming API. Every subscription keeps a local mirror of its node and
// delivers the full mirror after each change.
type Client struct {
	// baseURL is the database URL, e.g. https://<project>.firebaseio.com.
	baseURL string
	// authToken is appended as the auth query parameter when set.
	authToken string
	// httpClient performs the streaming requests.
	httpClient *http.Client

	mu      sync.Mutex
	nextID  feed.SubscriptionID
	streams map[feed.SubscriptionID]*stream
}

// stream is one running subscription goroutine.
type stream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client. A nil httpClient uses a client without timeout,
// which streaming requests need.
func New(baseURL, authToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = new(http.Client)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authToken:  authToken,
		httpClient: httpClient,
		streams:    make(map[feed.SubscriptionID]*stream),
	}
}

// Subscribe starts streaming path. Connection losses are reported through
// onErr and followed by a reconnect with exponential backoff.
func (c *Client) Subscribe(path string, onSnapshot func(feed.Snapshot), onErr func(error)) (feed.SubscriptionID, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &stream{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.streams[id] = s
	c.mu.Unlock()

	go func() {
		defer close(s.done)
		c.run(ctx, endpoint, onSnapshot, onErr)
	}()

	return id, nil
}

// Unsubscribe stops the stream and waits for its goroutine.
func (c *Client) Unsubscribe(id feed.SubscriptionID) {
	c.mu.Lock()
	s, ok := c.streams[id]
	delete(c.streams, id)
	c.mu.Unlock()

	if !ok {
		return
	}

	s.cancel()
	<-s.done
}

// endpoint builds the REST URL of path.
func (c *Client) endpoint(path string) (string, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.Trim(path, "/") + ".json")
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}

	if c.authToken != "" {
		query := u.Query()
		query.Set("auth", c.authToken)
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

// run keeps the stream open until ctx is canceled.
func (c *Client) run(ctx context.Context, endpoint string, onSnapshot func(feed.Snapshot), onErr func(error)) {
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		err := c.listen(ctx, endpoint, onSnapshot, retry.Reset)
		if ctx.Err() != nil {
			return
		}

		onErr(fmt.Errorf("firebase stream: %w", err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry.NextBackOff()):
		}
	}
}

// listen reads one streaming response until it ends.
func (c *Client) listen(ctx context.Context, endpoint string, onSnapshot func(feed.Snapshot), onConnected func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	onConnected()

	var (
		mirror  tree
		scanner = bufio.NewScanner(resp.Body)
		event   string
		data    bytes.Buffer
	)

	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			changed, dispatchErr := dispatch(&mirror, event, data.Bytes())
			if dispatchErr != nil {
				return dispatchErr
			}

			if changed {
				snapshot, snapErr := mirror.snapshot()
				if snapErr != nil {
					return snapErr
				}

				onSnapshot(snapshot)
			}

			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}

			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err = scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	return io.ErrUnexpectedEOF
}

// message is the payload of put and patch events.
type message struct {
	Path string `json:"path"`
	Data any    `json:"data"`
}

// dispatch applies one stream event to the mirror and reports whether it changed.
func dispatch(mirror *tree, event string, data []byte) (bool, error) {
	switch event {
	case eventPut, eventPatch:
		var msg message

		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()

		if err := decoder.Decode(&msg); err != nil {
			return false, fmt.Errorf("decode %s event: %w", event, err)
		}

		if event == eventPut {
			mirror.put(msg.Path, msg.Data)
		} else {
			mirror.patch(msg.Path, msg.Data)
		}

		return true, nil
	case eventCancel:
		return false, errStreamCanceled
	case eventAuthRevoked:
		return false, errAuthRevoked
	default:
		// keep-alive and unknown events carry no data.
		return false, nil
	}
}
