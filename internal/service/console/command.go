package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/trackguard/internal/api/grpc/operator"
	"github.com/oshokin/trackguard/internal/config"
	"github.com/oshokin/trackguard/internal/logger"
)

// Console actions.
const (
	ActionState    = "state"
	ActionHistory  = "history"
	ActionShow     = "show"
	ActionSelect   = "select"
	ActionClear    = "clear"
	ActionDismiss  = "dismiss"
	ActionOverlays = "overlays"
	ActionWatch    = "watch"
)

// DefaultPollInterval is the state polling interval of the watch action.
const DefaultPollInterval = 2 * time.Second

var (
	// errUnknownAction is returned for an action the console does not know.
	errUnknownAction = errors.New("unknown action")
	// errEntryIDRequired is returned when select is called without an entry.
	errEntryIDRequired = errors.New("history entry id must be provided")
)

// Options controls one console invocation.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress overrides the operator API address from the config.
	ServerAddress string
	// Action is one of the Action constants.
	Action string
	// EntryID is the history entry for the select action.
	EntryID string
	// Limit caps the history listing; zero lists everything.
	Limit int
	// PollInterval is the watch polling interval.
	PollInterval time.Duration
	// Out receives the output; defaults to stdout.
	Out io.Writer
}

// Run connects to the server and performs one action.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "trackguard-console")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := Dial(ctx, serverAddress, WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return Execute(ctx, client, opts, out)
}

// Execute performs opts.Action with an established client.
//
//nolint:cyclop // One case per action.
func Execute(ctx context.Context, client *Client, opts *Options, out io.Writer) error {
	switch opts.Action {
	case ActionState, "":
		state, err := client.GetState(ctx)
		if err != nil {
			return err
		}

		printState(out, state)
	case ActionHistory:
		history, err := client.ListHistory(ctx, opts.Limit)
		if err != nil {
			return err
		}

		printHistory(out, history)
	case ActionShow:
		state, err := client.ShowOnMap(ctx)
		if err != nil {
			return err
		}

		printState(out, state)
	case ActionSelect:
		if opts.EntryID == "" {
			return errEntryIDRequired
		}

		state, err := client.SelectHistory(ctx, opts.EntryID)
		if err != nil {
			return err
		}

		printState(out, state)
	case ActionClear:
		state, err := client.ClearHistory(ctx)
		if err != nil {
			return err
		}

		printState(out, state)
	case ActionDismiss:
		state, err := client.Dismiss(ctx)
		if err != nil {
			return err
		}

		printState(out, state)
	case ActionOverlays:
		overlays, err := client.GetOverlays(ctx)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		if err = encoder.Encode(overlays.Overlays); err != nil {
			return fmt.Errorf("write overlays: %w", err)
		}
	case ActionWatch:
		return watch(ctx, client, opts.PollInterval, out)
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}

	return nil
}

// watch prints the state every time the alert changes until ctx is canceled.
func watch(ctx context.Context, client *Client, interval time.Duration, out io.Writer) error {
	// Use default polling interval when none is given.
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string

	for {
		state, err := client.GetState(ctx)

		switch {
		case err != nil:
			logger.ErrorKV(ctx, "Get state failed", "error", err)
		case stateKey(state) != last:
			last = stateKey(state)
			printState(out, state)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
		}
	}
}

// stateKey identifies a state for change detection.
func stateKey(state *operator.StateResponse) string {
	id := ""
	if state.Alert.ActiveEvent != nil {
		id = state.Alert.ActiveEvent.ID
	}

	return fmt.Sprintf("%s|%s|%s|%t|%s", state.Alert.Phase, id, state.Alert.Notice, state.Alert.RouteDrawn, state.SelectedHistoryID)
}

func printState(out io.Writer, state *operator.StateResponse) {
	alert := state.Alert

	_, _ = fmt.Fprintf(out, "Alert: %s\n", alert.Phase)

	if alert.ActiveEvent != nil {
		event := alert.ActiveEvent
		_, _ = fmt.Fprintf(out, "  Event: %s at %.6f, %.6f reported %s\n",
			event.ID, event.Latitude, event.Longitude, event.ReportedAt.Local().Format(time.RFC3339))
		_, _ = fmt.Fprintf(out, "  Message: %s\n", alert.Popup)
		_, _ = fmt.Fprintf(out, "  Route drawn: %t\n", alert.RouteDrawn)
	}

	if alert.Notice != "" {
		_, _ = fmt.Fprintf(out, "  Notice: %s\n", alert.Notice)
	}

	if state.Position != nil {
		_, _ = fmt.Fprintf(out, "Position: %.6f, %.6f (±%.0f m)\n",
			state.Position.Latitude, state.Position.Longitude, state.Position.AccuracyRadiusMeters)
	} else {
		_, _ = fmt.Fprintln(out, "Position: unknown")
	}

	if state.SelectedHistoryID != "" {
		_, _ = fmt.Fprintf(out, "History selection: %s\n", state.SelectedHistoryID)
	}
}

func printHistory(out io.Writer, history *operator.ListHistoryResponse) {
	if len(history.Entries) == 0 {
		_, _ = fmt.Fprintln(out, "No reports")
		return
	}

	for _, entry := range history.Entries {
		_, _ = fmt.Fprintf(out, "%s  %-20s  %.6f, %.6f  %s\n",
			entry.DisplayTime, entry.Event.ID, entry.Event.Latitude, entry.Event.Longitude, entry.Event.Message)
	}
}
