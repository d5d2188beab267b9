package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"

	"github.com/oshokin/trackguard/internal/api/grpc/operator"
	httpapi "github.com/oshokin/trackguard/internal/api/http"
	"github.com/oshokin/trackguard/internal/audio"
	"github.com/oshokin/trackguard/internal/config"
	"github.com/oshokin/trackguard/internal/logger"
	"github.com/oshokin/trackguard/internal/mapsurface"
	"github.com/oshokin/trackguard/internal/orchestrator"
	"github.com/oshokin/trackguard/internal/routing"
	"github.com/oshokin/trackguard/internal/tracker"
	"github.com/oshokin/trackguard/internal/tracker/gpsd"
)

// Options controls the trackguard-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the gRPC operator API address.
	ListenAddress string
	// HTTPAddress overrides the overlay HTTP address.
	HTTPAddress string
}

// httpShutdownTimeout bounds the graceful shutdown of the HTTP server.
const httpShutdownTimeout = 5 * time.Second

// Run starts tracking, the operator API and the overlay endpoints, and
// blocks until ctx is canceled or a server fails.
//
//nolint:funlen // Wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	// Load configuration first to get server settings.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "trackguard-server")

	applyOverrides(cfg, opts)

	// Connect the emergency feed backend.
	reports, closeFeed, err := newFeed(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}

	defer func() {
		if closeErr := closeFeed(); closeErr != nil {
			logger.WarnKV(ctx, "Unable to close feed", "error", closeErr)
		}
	}()

	surface := mapsurface.NewMemory()

	orch, err := orchestrator.New(orchestrator.Deps{
		Source:  gpsd.New(cfg.Tracker.GPSDAddress, cfg.Timeout),
		Feed:    reports,
		Router:  routing.NewOSRM(cfg.Routing.OSRMURL, cfg.Routing.Profile, new(http.Client)),
		Surface: surface,
	}, orchestrator.Options{
		FeedPath: cfg.Feed.Path,
		Tracker: tracker.Options{
			HighAccuracy: cfg.Tracker.HighAccuracy,
			MaxCacheAge:  cfg.Tracker.MaxCacheAge,
			Timeout:      cfg.Tracker.SampleTimeout,
		},
		Zoom:               cfg.Map.Zoom,
		HazardRadiusMeters: cfg.Alert.HazardRadiusMeters,
		AllowDismiss:       cfg.Alert.AllowDismiss,
		SuppressItinerary:  cfg.Routing.SuppressItinerary,
		Cue:                audio.New(cfg.Alert.SoundCommand, cfg.Alert.SoundFile, os.Stderr),
	})
	if err != nil {
		return fmt.Errorf("wire orchestrator: %w", err)
	}

	// Overlays are released on every exit path.
	defer orch.Close()

	if err = orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}

	grpcServer := grpc.NewServer()
	operator.RegisterOperatorServer(grpcServer, operator.NewServer(orch))

	logger.InfoKV(ctx, "Operator API listening",
		"listen_address", lis.Addr().String(),
		"feed_backend", cfg.Feed.Backend,
		"feed_path", cfg.Feed.Path)

	serveErr := make(chan error, 2)

	go func() {
		if serveErrGRPC := grpcServer.Serve(lis); serveErrGRPC != nil && !errors.Is(serveErrGRPC, grpc.ErrServerStopped) {
			serveErr <- fmt.Errorf("serve gRPC: %w", serveErrGRPC)
		}
	}()

	var httpServer *http.Server

	if cfg.HTTPAddress != "" {
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           httpapi.NewRouter(ctx, orch),
			ReadHeaderTimeout: cfg.Timeout,
		}

		logger.InfoKV(ctx, "Overlay endpoints listening", "http_address", cfg.HTTPAddress)

		go func() {
			if serveErrHTTP := httpServer.ListenAndServe(); serveErrHTTP != nil && !errors.Is(serveErrHTTP, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("serve HTTP: %w", serveErrHTTP)
			}
		}()
	}

	select {
	case <-ctx.Done():
		err = nil
	case err = <-serveErr:
		logger.ErrorKV(ctx, "Server failed", "error", err)
	}

	logger.Info(ctx, "Shutting down")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.WarnKV(ctx, "HTTP shutdown failed", "error", shutdownErr)
		}
	}

	grpcServer.GracefulStop()
	logger.Info(ctx, "Servers stopped")

	return err
}

// applyOverrides applies command line values over the configuration.
func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.ListenAddress != "" {
		cfg.ListenAddress = opts.ListenAddress
	}

	if opts.HTTPAddress != "" {
		cfg.HTTPAddress = opts.HTTPAddress
	}
}
