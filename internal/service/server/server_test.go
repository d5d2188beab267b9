package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/trackguard/internal/config"
	"github.com/oshokin/trackguard/internal/feed/firebase"
)

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	applyOverrides(cfg, &Options{})
	require.Equal(t, config.DefaultListenAddress, cfg.ListenAddress)
	require.Empty(t, cfg.HTTPAddress)

	applyOverrides(cfg, &Options{ListenAddress: ":9090", HTTPAddress: ":8080"})
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, ":8080", cfg.HTTPAddress)
}

func TestNewFeed(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Feed.URL = "https://example.firebaseio.com"

	reports, closeFn, err := newFeed(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &firebase.Client{}, reports)
	require.NoError(t, closeFn())

	cfg.Feed.Backend = "kafka"
	_, _, err = newFeed(context.Background(), cfg)
	require.ErrorIs(t, err, errUnsupportedBackend)
}

func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: t.TempDir() + "/missing.yaml"})
	require.Error(t, err)
}
