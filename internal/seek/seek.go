// Package seek fans a user seek out to every time-dependent component in a
// fixed order.
package seek

import (
	"context"
	"log/slog"

	"storyreel/internal/logging"
	"storyreel/internal/render"
)

// Transport is the clock being repositioned.
type Transport interface {
	Playing() bool
	Seek(seconds float64)
}

// Narration is the speech track.
type Narration interface {
	ResumeAt(ctx context.Context, seconds float64)
	StopAll()
}

// Music is the background music controller.
type Music interface {
	Template() string
	Seek(ctx context.Context, seconds float64)
}

// Orchestrator coordinates a seek across transport, narration, music and the
// renderer.
type Orchestrator struct {
	transport Transport
	narration Narration
	music     Music
	renderer  render.Renderer
	logger    *slog.Logger
}

// New wires an orchestrator. narration, music and renderer may be nil.
func New(transport Transport, narration Narration, music Music, renderer render.Renderer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		transport: transport,
		narration: narration,
		music:     music,
		renderer:  renderer,
		logger:    logging.NewComponentLogger(logger, "seek"),
	}
}

// Options carries render hints for the final step of a seek.
type Options struct {
	ForceSceneIndex *int
	FontKey         string
}

// Seek moves the preview to target. Narration resumes from target while
// playing and is silenced while paused so scrubbing does not blurt audio. Music
// only follows while playing. The render skips animation replay during
// playback. Render failures are logged, never returned.
func (o *Orchestrator) Seek(ctx context.Context, target float64) {
	o.SeekTo(ctx, target, Options{})
}

// SeekTo is Seek with render hints, used when a scene was picked explicitly.
func (o *Orchestrator) SeekTo(ctx context.Context, target float64, opts Options) {
	wasPlaying := o.transport.Playing()
	o.transport.Seek(target)

	if o.narration != nil {
		if wasPlaying {
			o.narration.ResumeAt(ctx, target)
		} else {
			o.narration.StopAll()
		}
	}

	if o.music != nil && wasPlaying && o.music.Template() != "" {
		o.music.Seek(ctx, target)
	}

	if o.renderer != nil {
		if err := o.renderer.RenderAt(ctx, target, render.Options{
			SkipAnimation:   wasPlaying,
			ForceSceneIndex: opts.ForceSceneIndex,
			FontKey:         opts.FontKey,
		}); err != nil {
			o.logger.Warn("render after seek failed",
				logging.Seconds("target", target),
				logging.Error(err),
				logging.String(logging.FieldEventType, "render_failed"),
			)
		}
	}
}
