package console

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oshokin/trackguard/internal/api/grpc/operator"
	"github.com/oshokin/trackguard/internal/config"
)

// Client wraps the operator API client with per-call timeouts.
type Client struct {
	// conn is the underlying gRPC connection to the server.
	conn *grpc.ClientConn
	// api is the operator API client.
	api *operator.OperatorClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the operator API at address.
// Note: this uses insecure transport credentials; the API is meant for a
// trusted network or a TLS terminating proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial operator API: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         operator.NewOperatorClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetState returns the alert state and the live position.
func (c *Client) GetState(ctx context.Context) (*operator.StateResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetState(callCtx)
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	return resp, nil
}

// ListHistory returns up to limit reports, most recent first; zero means all.
func (c *Client) ListHistory(ctx context.Context, limit int) (*operator.ListHistoryResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListHistory(callCtx, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return resp, nil
}

// ShowOnMap draws the active alert.
func (c *Client) ShowOnMap(ctx context.Context) (*operator.StateResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ShowOnMap(callCtx)
	if err != nil {
		return nil, fmt.Errorf("show on map: %w", err)
	}

	return resp, nil
}

// SelectHistory replays the history entry id.
func (c *Client) SelectHistory(ctx context.Context, id string) (*operator.StateResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.SelectHistory(callCtx, id)
	if err != nil {
		return nil, fmt.Errorf("select history entry %s: %w", id, err)
	}

	return resp, nil
}

// ClearHistory removes the history visualization.
func (c *Client) ClearHistory(ctx context.Context) (*operator.StateResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ClearHistory(callCtx)
	if err != nil {
		return nil, fmt.Errorf("clear history: %w", err)
	}

	return resp, nil
}

// Dismiss dismisses the active alert.
func (c *Client) Dismiss(ctx context.Context) (*operator.StateResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Dismiss(callCtx)
	if err != nil {
		return nil, fmt.Errorf("dismiss: %w", err)
	}

	return resp, nil
}

// GetOverlays returns what is drawn on the map.
func (c *Client) GetOverlays(ctx context.Context) (*operator.OverlaysResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetOverlays(callCtx)
	if err != nil {
		return nil, fmt.Errorf("get overlays: %w", err)
	}

	return resp, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
