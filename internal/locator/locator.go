// Package locator maps the preview clock to the active scene.
package locator

import (
	"sync"

	"storyreel/internal/timeline"
)

// NarrationSource reports scene timing derived from synthesized narration.
type NarrationSource interface {
	SceneAt(t float64) (int, bool)
	SceneEnd(index int) (float64, bool)
}

// Seeker repositions the clock.
type Seeker interface {
	Seek(seconds float64)
}

// SelectOptions tunes Select.
type SelectOptions struct {
	// SkipSeek leaves the clock alone when the caller already positioned it.
	SkipSeek bool
}

// Locator answers which scene is active. While playing, narration timing wins
// over the nominal scene boundaries because real speech length differs from the
// configured estimate. While paused, a manual selection wins until the next
// play or ClearManual.
type Locator struct {
	narration NarrationSource
	seeker    Seeker

	mu     sync.Mutex
	scenes []*timeline.Scene
	manual int
}

// New builds a locator. narration and seeker may be nil.
func New(narration NarrationSource, seeker Seeker) *Locator {
	return &Locator{narration: narration, seeker: seeker, manual: -1}
}

// SetScenes replaces the scene list used for boundary lookups. A manual
// selection that no longer exists is cleared.
func (l *Locator) SetScenes(scenes []*timeline.Scene) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scenes = scenes
	if l.manual >= len(scenes) {
		l.manual = -1
	}
}

// Locate returns the active scene index at t, or -1 for an empty timeline.
func (l *Locator) Locate(t float64, playing bool) int {
	l.mu.Lock()
	scenes := l.scenes
	manual := l.manual
	l.mu.Unlock()

	n := len(scenes)
	if n == 0 {
		return -1
	}
	if playing {
		if l.narration != nil {
			if idx, ok := l.narration.SceneAt(t); ok && idx >= 0 && idx < n {
				return idx
			}
		}
	} else if manual >= 0 && manual < n {
		return manual
	}
	return timeline.IndexAt(scenes, t)
}

// Select pins index as the active scene and, unless opts.SkipSeek, seeks to
// the end of the previous scene's narration so the scene's own transition plays
// from its beginning. It reports false for an out-of-range index.
func (l *Locator) Select(index int, opts SelectOptions) bool {
	l.mu.Lock()
	scenes := l.scenes
	if index < 0 || index >= len(scenes) {
		l.mu.Unlock()
		return false
	}
	l.manual = index
	l.mu.Unlock()

	if opts.SkipSeek || l.seeker == nil {
		return true
	}
	l.seeker.Seek(l.selectionTime(scenes, index))
	return true
}

func (l *Locator) selectionTime(scenes []*timeline.Scene, index int) float64 {
	if index == 0 {
		return 0
	}
	if l.narration != nil {
		if end, ok := l.narration.SceneEnd(index - 1); ok {
			return end
		}
	}
	return timeline.SceneStart(scenes, index)
}

// Manual returns the pinned scene index, if any.
func (l *Locator) Manual() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manual, l.manual >= 0
}

// ClearManual drops the pinned scene so time-based lookup resumes.
func (l *Locator) ClearManual() {
	l.mu.Lock()
	l.manual = -1
	l.mu.Unlock()
}
