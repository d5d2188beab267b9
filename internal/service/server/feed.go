package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/oshokin/trackguard/internal/config"
	"github.com/oshokin/trackguard/internal/feed"
	"github.com/oshokin/trackguard/internal/feed/firebase"
	"github.com/oshokin/trackguard/internal/feed/redisfeed"
	"github.com/oshokin/trackguard/internal/logger"
)

// errUnsupportedBackend is returned for a feed backend without an implementation.
var errUnsupportedBackend = errors.New("unsupported feed backend")

// newFeed builds the configured feed backend. The returned function
// releases its connections.
func newFeed(ctx context.Context, cfg *config.Config) (feed.Feed, func() error, error) {
	switch cfg.Feed.Backend {
	case config.FeedBackendRedis:
		reports, closeFn, err := redisfeed.Dial(ctx, cfg.Feed.URL, cfg.Feed.Channel, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}

		logger.InfoKV(ctx, "Using Redis feed", "channel", cfg.Feed.Channel)

		return reports, closeFn, nil
	case config.FeedBackendFirebase, "":
		// Streaming responses never end, so the client carries no timeout.
		reports := firebase.New(cfg.Feed.URL, cfg.Feed.AuthToken, new(http.Client))

		logger.InfoKV(ctx, "Using Firebase feed", "url", cfg.Feed.URL)

		return reports, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnsupportedBackend, cfg.Feed.Backend)
	}
}
