package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"storyreel/internal/bgm"
	"storyreel/internal/narration"
	"storyreel/internal/render"
)

// cueLog prints what a headless preview would have done to its media outputs.
type cueLog struct {
	out    io.Writer
	scenes []string
	clock  func() float64

	mu    sync.Mutex
	scene int
}

func newCueLog(out io.Writer, sceneIDs []string) *cueLog {
	return &cueLog{out: out, scenes: sceneIDs, scene: -1, clock: func() float64 { return 0 }}
}

func (l *cueLog) printf(at float64, kind, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%8s  %-10s %s\n", seconds(at), kind, fmt.Sprintf(format, args...))
}

// RenderAt reports scene changes only; per-frame renders are not printed.
func (l *cueLog) RenderAt(_ context.Context, at float64, opts render.Options) error {
	if opts.ForceSceneIndex == nil {
		return nil
	}
	idx := *opts.ForceSceneIndex
	l.mu.Lock()
	changed := idx != l.scene
	l.scene = idx
	l.mu.Unlock()
	if !changed {
		return nil
	}
	id := ""
	if idx >= 0 && idx < len(l.scenes) {
		id = l.scenes[idx]
	}
	font := ""
	if opts.FontKey != "" {
		font = " font=" + opts.FontKey
	}
	l.printf(at, "scene", "%d %s%s", idx, id, font)
	return nil
}

func (l *cueLog) SetPlaying(playing bool) {
	state := "paused"
	if playing {
		state = "playing"
	}
	l.printf(l.clock(), "state", "%s", state)
}

func (l *cueLog) Narration() narration.Player { return narrationLog{l} }

func (l *cueLog) Music() bgm.Player { return musicLog{l} }

type narrationLog struct{ l *cueLog }

func (n narrationLog) Play(_ context.Context, seg *narration.Segment, offset float64) error {
	n.l.printf(n.l.clock(), "narration", "%s part %d from %s (%s)", seg.SceneID, seg.PartIndex, seconds(offset), seg.Markup)
	return nil
}

func (n narrationLog) Stop() {}

type musicLog struct{ l *cueLog }

func (m musicLog) Start(_ context.Context, templateID string, at float64) error {
	m.l.printf(m.l.clock(), "music", "start %s at %s", templateID, seconds(at))
	return nil
}

func (m musicLog) Resume(context.Context) error {
	m.l.printf(m.l.clock(), "music", "resume")
	return nil
}

func (m musicLog) Pause() { m.l.printf(m.l.clock(), "music", "pause") }

func (m musicLog) Stop() { m.l.printf(m.l.clock(), "music", "stop") }

func (m musicLog) Seek(_ context.Context, at float64) error {
	m.l.printf(m.l.clock(), "music", "seek %s", seconds(at))
	return nil
}

// estimateSynth stands in for the speech service when previewing offline. Clip
// length follows reading speed and each pause marker adds its pause.
type estimateSynth struct {
	wordsPerSecond float64
}

const (
	shortPauseSeconds = 0.4
	longPauseSeconds  = 1.2
)

func (s estimateSynth) Synthesize(_ context.Context, _ string, markup string) (narration.Audio, error) {
	long := strings.Count(markup, narration.LongPauseMarker)
	short := strings.Count(markup, narration.PauseMarker)
	text := strings.ReplaceAll(markup, narration.LongPauseMarker, " ")
	text = strings.ReplaceAll(text, narration.PauseMarker, " ")
	words := len(strings.Fields(text))
	wps := s.wordsPerSecond
	if wps <= 0 {
		wps = 2.5
	}
	duration := float64(words)/wps + float64(short)*shortPauseSeconds + float64(long)*longPauseSeconds
	return narration.Audio{DurationSeconds: duration}, nil
}
