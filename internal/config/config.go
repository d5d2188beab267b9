package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the trackguard binaries.
type Config struct {
	// ListenAddress is the gRPC operator API address.
	ListenAddress string `yaml:"listen_addr"`
	// HTTPAddress is the address serving overlay GeoJSON; empty disables it.
	HTTPAddress string `yaml:"http_addr"`
	// Timeout is the duration for console RPC calls and backend handshakes.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level of log messages.
	LogLevel string `yaml:"log_level"`
	// LogFormat selects the log encoder (console or json).
	LogFormat string `yaml:"log_format"`
	// Feed configures the emergency report feed.
	Feed FeedConfig `yaml:"feed"`
	// Tracker configures the live position source.
	Tracker TrackerConfig `yaml:"tracker"`
	// Routing configures the routing service.
	Routing RoutingConfig `yaml:"routing"`
	// Alert configures the alert lifecycle.
	Alert AlertConfig `yaml:"alert"`
	// Map configures viewport behaviour.
	Map MapConfig `yaml:"map"`
}

// FeedConfig selects and configures the emergency feed backend.
type FeedConfig struct {
	// Backend is either "firebase" or "redis".
	Backend string `yaml:"backend"`
	// URL is the Firebase database URL or the Redis connection URL.
	URL string `yaml:"url"`
	// Path is the feed node (Firebase) or hash key (Redis) holding reports.
	Path string `yaml:"path"`
	// Channel is the Redis pub/sub channel announcing changes.
	Channel string `yaml:"channel"`
	// AuthToken is an optional Firebase auth token.
	AuthToken string `yaml:"auth_token"`
}

// TrackerConfig configures the gpsd position source and sampling options.
type TrackerConfig struct {
	// GPSDAddress is the gpsd TCP address.
	GPSDAddress string `yaml:"gpsd_addr"`
	// HighAccuracy requires a 3D fix.
	HighAccuracy bool `yaml:"high_accuracy"`
	// MaxCacheAge drops fixes older than this. Zero keeps only fixes younger than
	// the sampling timeout; a negative value keeps fixes of any age.
	MaxCacheAge time.Duration `yaml:"max_cache_age"`
	// SampleTimeout reports a sampling failure when no fix arrives in time.
	SampleTimeout time.Duration `yaml:"timeout"`
}

// RoutingConfig configures the OSRM routing client.
type RoutingConfig struct {
	// OSRMURL is the base URL of the OSRM HTTP service.
	OSRMURL string `yaml:"osrm_url"`
	// Profile is the OSRM routing profile.
	Profile string `yaml:"profile"`
	// SuppressItinerary hides the built-in itinerary panel of the renderer.
	SuppressItinerary bool `yaml:"suppress_itinerary"`
}

// AlertConfig configures the alert lifecycle and cue.
type AlertConfig struct {
	// HazardRadiusMeters is the radius of the circle drawn around an emergency.
	HazardRadiusMeters float64 `yaml:"hazard_radius_meters"`
	// AllowDismiss enables the operator dismiss transition back to idle.
	AllowDismiss bool `yaml:"allow_dismiss"`
	// SoundCommand is the player executable used for the alarm cue; empty rings the terminal bell.
	SoundCommand string `yaml:"sound_command"`
	// SoundFile is passed to SoundCommand.
	SoundFile string `yaml:"sound_file"`
}

// MapConfig configures viewport behaviour.
type MapConfig struct {
	// Zoom is the zoom level used when recentering.
	Zoom int `yaml:"zoom"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "trackguard-settings.yaml"

	// DefaultListenAddress is the default gRPC operator API address.
	DefaultListenAddress = "127.0.0.1:50061"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFeedPath is the node holding emergency reports.
	DefaultFeedPath = "reports"

	// DefaultGPSDAddress is where gpsd listens by default.
	DefaultGPSDAddress = "127.0.0.1:2947"

	// DefaultSampleTimeout is how long the tracker waits for a fix.
	DefaultSampleTimeout = 10 * time.Second

	// DefaultOSRMURL is the public OSRM demo server.
	DefaultOSRMURL = "https://router.project-osrm.org"

	// DefaultRoutingProfile is the OSRM profile used for routes.
	DefaultRoutingProfile = "driving"

	// DefaultHazardRadiusMeters is the emergency circle radius.
	DefaultHazardRadiusMeters = 100

	// DefaultZoom matches the zoom used by the dashboard map.
	DefaultZoom = 16

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// FeedBackendFirebase reads reports from a Firebase Realtime Database.
	FeedBackendFirebase = "firebase"
	// FeedBackendRedis reads reports from a Redis hash.
	FeedBackendRedis = "redis"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errFeedURLRequired is returned when the feed URL is missing.
	errFeedURLRequired = errors.New("feed url must be provided")
	// errUnknownFeedBackend is returned for unsupported feed backends.
	errUnknownFeedBackend = errors.New("unknown feed backend")
	// errInvalidZoom is returned for zoom levels outside the tile range.
	errInvalidZoom = errors.New("zoom must be between 0 and 22")
	// errInvalidRadius is returned for negative hazard radii.
	errInvalidRadius = errors.New("hazard radius must not be negative")
)

// Default returns a configuration populated with defaults only.
func Default() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		Timeout:       DefaultTimeout,
		LogLevel:      "info",
		Feed: FeedConfig{
			Backend: FeedBackendFirebase,
			Path:    DefaultFeedPath,
		},
		Tracker: TrackerConfig{
			GPSDAddress:   DefaultGPSDAddress,
			HighAccuracy:  true,
			SampleTimeout: DefaultSampleTimeout,
		},
		Routing: RoutingConfig{
			OSRMURL:           DefaultOSRMURL,
			Profile:           DefaultRoutingProfile,
			SuppressItinerary: true,
		},
		Alert: AlertConfig{
			HazardRadiusMeters: DefaultHazardRadiusMeters,
		},
		Map: MapConfig{
			Zoom: DefaultZoom,
		},
	}
}

// Load reads configuration from the provided path and validates essential fields.
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold a feed auth token.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills zero values with defaults.
//
//nolint:cyclop // A flat list of checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.HTTPAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if err := validateFeed(&cfg.Feed); err != nil {
		return err
	}

	if cfg.Tracker.GPSDAddress == "" {
		cfg.Tracker.GPSDAddress = DefaultGPSDAddress
	}

	if cfg.Tracker.SampleTimeout <= 0 {
		cfg.Tracker.SampleTimeout = DefaultSampleTimeout
	}

	if cfg.Routing.OSRMURL == "" {
		cfg.Routing.OSRMURL = DefaultOSRMURL
	}

	if _, err := url.ParseRequestURI(cfg.Routing.OSRMURL); err != nil {
		return fmt.Errorf("invalid osrm url: %w", err)
	}

	if cfg.Routing.Profile == "" {
		cfg.Routing.Profile = DefaultRoutingProfile
	}

	if cfg.Alert.HazardRadiusMeters < 0 {
		return errInvalidRadius
	}

	if cfg.Alert.HazardRadiusMeters == 0 {
		cfg.Alert.HazardRadiusMeters = DefaultHazardRadiusMeters
	}

	if cfg.Map.Zoom == 0 {
		cfg.Map.Zoom = DefaultZoom
	}

	if cfg.Map.Zoom < 0 || cfg.Map.Zoom > 22 {
		return errInvalidZoom
	}

	return nil
}

// validateFeed checks the feed backend settings.
func validateFeed(feed *FeedConfig) error {
	feed.Backend = strings.ToLower(strings.TrimSpace(feed.Backend))
	if feed.Backend == "" {
		feed.Backend = FeedBackendFirebase
	}

	if feed.Backend != FeedBackendFirebase && feed.Backend != FeedBackendRedis {
		return fmt.Errorf("%w: %q", errUnknownFeedBackend, feed.Backend)
	}

	if feed.URL == "" {
		return errFeedURLRequired
	}

	if _, err := url.ParseRequestURI(feed.URL); err != nil {
		return fmt.Errorf("invalid feed url: %w", err)
	}

	if feed.Path == "" {
		feed.Path = DefaultFeedPath
	}

	if feed.Backend == FeedBackendRedis && feed.Channel == "" {
		feed.Channel = feed.Path + ":changes"
	}

	return nil
}
