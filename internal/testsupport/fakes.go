package testsupport

import (
	"context"
	"sync"

	"storyreel/internal/narration"
	"storyreel/internal/render"
)

// Synth is a deterministic narration.Synthesizer. Each clip lasts
// SecondsPerRune per rune of markup, or one second when unset.
type Synth struct {
	SecondsPerRune float64
	Err            error

	mu    sync.Mutex
	calls []string
}

// Synthesize records the call and returns fake MPEG audio.
func (s *Synth) Synthesize(_ context.Context, voiceID, markup string) (narration.Audio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, narration.CacheKey(voiceID, markup))
	if s.Err != nil {
		return narration.Audio{}, s.Err
	}
	d := 1.0
	if s.SecondsPerRune > 0 {
		d = s.SecondsPerRune * float64(len([]rune(markup)))
	}
	return narration.Audio{Data: append([]byte("ID3\x04\x00"), markup...), DurationSeconds: d}, nil
}

// Calls returns the cache keys synthesized so far.
func (s *Synth) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Recorder captures collaborator calls from a preview session in order.
type Recorder struct {
	mu     sync.Mutex
	events []string
	render []render.Options
	times  []float64
}

func (r *Recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns the recorded event names.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Renders returns the times and options of every RenderAt call.
func (r *Recorder) Renders() ([]float64, []render.Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.times...), append([]render.Options(nil), r.render...)
}

// Play implements narration.Player.
func (r *Recorder) Play(_ context.Context, seg *narration.Segment, _ float64) error {
	r.add("narration.play:" + seg.SceneID)
	return nil
}

// Stop implements narration.Player and bgm.Player.
func (r *Recorder) Stop() { r.add("stop") }

// Start implements bgm.Player.
func (r *Recorder) Start(_ context.Context, templateID string, _ float64) error {
	r.add("bgm.start:" + templateID)
	return nil
}

// Resume implements bgm.Player.
func (r *Recorder) Resume(context.Context) error {
	r.add("bgm.resume")
	return nil
}

// Pause implements bgm.Player.
func (r *Recorder) Pause() { r.add("bgm.pause") }

// Seek implements bgm.Player.
func (r *Recorder) Seek(context.Context, float64) error {
	r.add("bgm.seek")
	return nil
}

// RenderAt implements render.Renderer.
func (r *Recorder) RenderAt(_ context.Context, seconds float64, opts render.Options) error {
	r.mu.Lock()
	r.times = append(r.times, seconds)
	r.render = append(r.render, opts)
	r.mu.Unlock()
	return nil
}

// SetPlaying implements playstate.MediaSession.
func (r *Recorder) SetPlaying(playing bool) {
	if playing {
		r.add("session.playing")
		return
	}
	r.add("session.paused")
}
