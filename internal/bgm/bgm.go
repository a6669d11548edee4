// Package bgm keeps background music in step with the preview transport and
// the user's confirmed track selection.
package bgm

import (
	"context"
	"log/slog"
	"sync"

	"storyreel/internal/logging"
)

// State is the controller's playback state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Player is the audio output for background music.
type Player interface {
	Start(ctx context.Context, templateID string, at float64) error
	Resume(ctx context.Context) error
	Pause()
	Stop()
	Seek(ctx context.Context, at float64) error
}

// Clock supplies the transport time used when (re)starting a track.
type Clock interface {
	Time() float64
}

// Controller is the background music state machine. Media failures never
// propagate: resume falls back to a fresh start, and a failed start leaves the
// controller stopped.
type Controller struct {
	player Player
	clock  Clock
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	template string
	loaded   string
	position float64
}

// New constructs a stopped controller.
func New(player Player, clock Clock, logger *slog.Logger) *Controller {
	return &Controller{
		player: player,
		clock:  clock,
		logger: logging.NewComponentLogger(logger, "bgm"),
	}
}

// Reconcile applies the transition rules for the given play flag and template.
func (c *Controller) Reconcile(ctx context.Context, playing bool, templateID string) State {
	c.mu.Lock()
	c.template = templateID
	c.mu.Unlock()
	return c.reconcile(ctx, playing)
}

// Confirm sets the user's chosen track and reconciles.
func (c *Controller) Confirm(ctx context.Context, templateID string, playing bool) State {
	return c.Reconcile(ctx, playing, templateID)
}

// Clear removes the chosen track, which always stops playback.
func (c *Controller) Clear(ctx context.Context) State {
	return c.Reconcile(ctx, false, "")
}

// OnPlayState reconciles against the current template after a transport
// play/pause change.
func (c *Controller) OnPlayState(ctx context.Context, playing bool) State {
	return c.reconcile(ctx, playing)
}

func (c *Controller) reconcile(ctx context.Context, playing bool) State {
	c.mu.Lock()
	template := c.template
	state := c.state
	loaded := c.loaded
	c.mu.Unlock()

	switch {
	case template == "":
		c.Stop()
	case playing:
		if state != Stopped && loaded == template {
			if state == Playing {
				return Playing
			}
			err := c.player.Resume(ctx)
			if err == nil {
				c.set(Playing, template)
				return Playing
			}
			c.logger.Debug("bgm resume failed, restarting", logging.Error(err))
		}
		c.start(ctx, template)
	default:
		if state == Playing {
			c.player.Pause()
			c.mu.Lock()
			c.state = Paused
			if c.clock != nil {
				c.position = c.clock.Time()
			}
			c.mu.Unlock()
		}
	}
	return c.State()
}

func (c *Controller) start(ctx context.Context, template string) {
	at := 0.0
	if c.clock != nil {
		at = c.clock.Time()
	}
	if err := c.player.Start(ctx, template, at); err != nil {
		c.player.Stop()
		c.set(Stopped, "")
		logging.WarnWithContext(c.logger, "background music failed to start", "bgm_start_failed",
			logging.String("template_id", template),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the music template source"),
			logging.String(logging.FieldImpact, "preview continues without music"),
		)
		return
	}
	c.mu.Lock()
	c.state = Playing
	c.loaded = template
	c.position = at
	c.mu.Unlock()
}

func (c *Controller) set(state State, loaded string) {
	c.mu.Lock()
	c.state = state
	c.loaded = loaded
	c.mu.Unlock()
}

// Stop silences music from any state.
func (c *Controller) Stop() {
	c.mu.Lock()
	wasStopped := c.state == Stopped && c.loaded == ""
	c.state = Stopped
	c.loaded = ""
	c.position = 0
	c.mu.Unlock()
	if !wasStopped {
		c.player.Stop()
	}
}

// Seek moves the music position. Failures are logged and ignored.
func (c *Controller) Seek(ctx context.Context, at float64) {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return
	}
	c.position = at
	c.mu.Unlock()
	if err := c.player.Seek(ctx, at); err != nil {
		logging.WarnWithContext(c.logger, "background music seek failed", "bgm_seek_failed",
			logging.Seconds("at", at),
			logging.Error(err),
			logging.String(logging.FieldImpact, "music may drift until the next restart"),
		)
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Template returns the confirmed template id, if any.
func (c *Controller) Template() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.template
}

// Position returns the last known music position in seconds.
func (c *Controller) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// NopPlayer is a Player with no audio output.
type NopPlayer struct{}

func (NopPlayer) Start(context.Context, string, float64) error { return nil }
func (NopPlayer) Resume(context.Context) error                 { return nil }
func (NopPlayer) Pause()                                       {}
func (NopPlayer) Stop()                                        {}
func (NopPlayer) Seek(context.Context, float64) error          { return nil }
