package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/trackguard/internal/domain/tracking"
	"github.com/oshokin/trackguard/internal/logger"
)

// Cue plays the alarm sound once. Callers treat every error as non-fatal.
type Cue interface {
	PlayOnce(ctx context.Context) error
}

// ProcessFinder looks up a running process by pid; a nil process means it is gone.
type ProcessFinder func(pid int) (ps.Process, error)

// Command plays a sound file by starting an external player.
type Command struct {
	// player is the executable; args are passed before the sound file.
	player string
	args   []string
	// file is the sound to play.
	file string
	// findProcess confirms the last started player is still alive.
	findProcess ProcessFinder

	mu sync.Mutex
	// pid is the player started by this cue, zero once it exited.
	pid int
}

// NewCommand creates a command cue. An empty player selects the platform default.
func NewCommand(player, file string) *Command {
	args := []string(nil)

	if player == "" {
		player, args = defaultPlayer()
	} else if fields := strings.Fields(player); len(fields) > 1 {
		player, args = fields[0], fields[1:]
	}

	return &Command{
		player:    player,
		args:      args,
		file:        file,
		findProcess: ps.FindProcess,
	}
}

// WithProcessFinder replaces the process lookup.
func (c *Command) WithProcessFinder(finder ProcessFinder) *Command {
	c.findProcess = finder

	return c
}

// PlayOnce starts the player and returns without waiting for the sound to end.
// Nothing is started while the player this cue started last is still running.
func (c *Command) PlayOnce(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing(ctx) {
		logger.DebugKV(ctx, "Alarm cue already playing", "player", c.player, "pid", c.pid)
		return nil
	}

	args := append(append([]string(nil), c.args...), c.file)

	// The player must outlive the request that triggered it.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), c.player, args...) //nolint:gosec // Player comes from local configuration.
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %w", tracking.ErrAudioPlayback, c.player, err)
	}

	pid := cmd.Process.Pid
	c.pid = pid

	go func() {
		if waitErr := cmd.Wait(); waitErr != nil {
			logger.WarnKV(ctx, "Alarm cue player failed", "player", c.player, "error", waitErr)
		}

		c.mu.Lock()
		if c.pid == pid {
			c.pid = 0
		}
		c.mu.Unlock()
	}()

	return nil
}

// playing reports whether the last started player is alive. Callers hold mu.
func (c *Command) playing(ctx context.Context) bool {
	if c.pid == 0 {
		return false
	}

	if c.findProcess == nil {
		return true
	}

	process, err := c.findProcess(c.pid)
	if err != nil {
		logger.WarnKV(ctx, "Unable to look up alarm cue player", "pid", c.pid, "error", err)
		return true
	}

	if process == nil {
		c.pid = 0
		return false
	}

	return true
}

// defaultPlayer returns a player that ships with the operating system.
func defaultPlayer() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "afplay", nil
	case "windows":
		return "powershell.exe", []string{"-NoProfile", "-Command", "(New-Object Media.SoundPlayer $args[0]).PlaySync()"}
	default:
		return "paplay", nil
	}
}

// Bell writes the terminal bell character.
type Bell struct {
	w io.Writer
}

// NewBell creates a bell cue writing to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

// PlayOnce rings the bell.
func (b *Bell) PlayOnce(context.Context) error {
	if _, err := io.WriteString(b.w, "\a"); err != nil {
		return fmt.Errorf("%w: ring bell: %w", tracking.ErrAudioPlayback, err)
	}

	return nil
}

// Silent is a cue that plays nothing.
type Silent struct{}

// PlayOnce does nothing.
func (Silent) PlayOnce(context.Context) error {
	return nil
}

// New picks a cue for the configured sound: a player when a file is set,
// the terminal bell otherwise.
func New(player, file string, bell io.Writer) Cue {
	if file != "" {
		return NewCommand(player, file)
	}

	if bell != nil {
		return NewBell(bell)
	}

	return Silent{}
}
