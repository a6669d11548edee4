package narration

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/timeline"
)

// Player plays narration clips. Play starts seg at offset seconds into the
// clip; Stop silences whatever is playing.
type Player interface {
	Play(ctx context.Context, seg *Segment, offset float64) error
	Stop()
}

// TrackOptions configures a Track.
type TrackOptions struct {
	VoiceID              string
	Delimiter            string
	SceneTransitionPause bool
	Concurrency          int
	Logger               *slog.Logger
}

// SegmentWindow is one planned part laid out on the clock.
type SegmentWindow struct {
	SceneID    string
	SceneIndex int
	PartIndex  int
	CacheKey   string
	Window     timeline.Window
	// Segment is nil until synthesis completes.
	Segment *Segment
}

// Ready reports whether the window has synthesized audio.
func (w SegmentWindow) Ready() bool { return w.Segment != nil }

type plannedPart struct {
	sceneID    string
	sceneIndex int
	partIndex  int
	markup     string
	key        string
	nominal    float64
	silent     bool
	seg        *Segment
}

// Track lays narration segments out on the preview clock and keeps a Player
// in step with it.
type Track struct {
	cache  *Cache
	player Player
	opts   TrackOptions
	logger *slog.Logger

	mu      sync.Mutex
	plan    []plannedPart
	current string
	failed  map[string]bool
}

// NewTrack builds a track over cache. player may be nil for headless use.
func NewTrack(cache *Cache, player Player, opts TrackOptions) *Track {
	if opts.Delimiter == "" {
		opts.Delimiter = DefaultDelimiter
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Track{
		cache:  cache,
		player: player,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "narration"),
		failed: make(map[string]bool),
	}
}

// Cache exposes the backing segment cache.
func (t *Track) Cache() *Cache { return t.cache }

// Plan rebuilds the part layout from tl. Already synthesized parts whose cache
// key is unchanged keep their audio.
func (t *Track) Plan(tl *timeline.Timeline) {
	var scenes []*timeline.Scene
	if tl != nil {
		scenes = tl.Scenes
	}
	plan := make([]plannedPart, 0, len(scenes))
	for i, scene := range scenes {
		parts := BuildMarkup(scene.Script, MarkupOptions{
			Delimiter:            t.opts.Delimiter,
			SceneTransitionPause: t.opts.SceneTransitionPause,
			LastScene:            i == len(scenes)-1,
		})
		if len(parts) == 0 {
			plan = append(plan, plannedPart{
				sceneID:    scene.ID,
				sceneIndex: i,
				nominal:    scene.DurationSeconds,
				silent:     true,
			})
			continue
		}
		share := scene.DurationSeconds / float64(len(parts))
		for p, markup := range parts {
			key := CacheKey(t.opts.VoiceID, markup)
			part := plannedPart{
				sceneID:    scene.ID,
				sceneIndex: i,
				partIndex:  p,
				markup:     markup,
				key:        key,
				nominal:    share,
			}
			if seg, ok := t.cache.Lookup(key); ok {
				part.seg = seg
			}
			plan = append(plan, part)
		}
	}

	t.mu.Lock()
	t.plan = plan
	t.failed = make(map[string]bool)
	t.mu.Unlock()

	t.cache.Retain(timeline.SceneIDs(scenes))
}

// Prepare synthesizes every planned part that has no audio yet. Failures are
// logged and skipped so the preview keeps advancing without that part. Only a
// cancelled ctx is returned as an error.
func (t *Track) Prepare(ctx context.Context) error {
	t.mu.Lock()
	pending := make([]plannedPart, 0, len(t.plan))
	for _, part := range t.plan {
		if !part.silent && part.seg == nil {
			pending = append(pending, part)
		}
	}
	t.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Concurrency)
	for _, part := range pending {
		g.Go(func() error {
			seg, err := t.cache.Synthesize(gctx, Request{
				SceneID:    part.sceneID,
				SceneIndex: part.sceneIndex,
				PartIndex:  part.partIndex,
				VoiceID:    t.opts.VoiceID,
				Markup:     part.markup,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger := logging.WithContext(services.WithSceneID(gctx, part.sceneID), t.logger)
				logging.WarnWithContext(logger, "narration synthesis failed", "narration_synthesis_failed",
					logging.String(logging.FieldCacheKey, part.key),
					logging.Int("part_index", part.partIndex),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the speech service; the part will be retried on the next prepare"),
					logging.String(logging.FieldImpact, "this part plays silently"),
				)
				return nil
			}
			t.apply(part, seg)
			return nil
		})
	}
	return g.Wait()
}

// apply stores seg only if the plan still expects it for that scene.
func (t *Track) apply(part plannedPart, seg *Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.plan {
		p := &t.plan[i]
		if p.sceneID == part.sceneID && p.key == part.key && p.partIndex == part.partIndex {
			p.seg = seg
		}
	}
}

// Windows returns the cumulative layout. Parts with audio use the real clip
// duration; the rest occupy their scene's nominal share.
func (t *Track) Windows() []SegmentWindow {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.windowsLocked()
}

func (t *Track) windowsLocked() []SegmentWindow {
	windows := make([]SegmentWindow, 0, len(t.plan))
	start := 0.0
	for _, part := range t.plan {
		length := part.nominal
		if part.seg != nil && part.seg.DurationSeconds > 0 {
			length = part.seg.DurationSeconds
		}
		windows = append(windows, SegmentWindow{
			SceneID:    part.sceneID,
			SceneIndex: part.sceneIndex,
			PartIndex:  part.partIndex,
			CacheKey:   part.key,
			Window:     timeline.Window{Start: start, End: start + length},
			Segment:    part.seg,
		})
		start += length
	}
	return windows
}

// ActiveSegment returns the synthesized window covering at.
func (t *Track) ActiveSegment(at float64) (SegmentWindow, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return activeWindow(t.windowsLocked(), at)
}

func activeWindow(windows []SegmentWindow, at float64) (SegmentWindow, bool) {
	for _, w := range windows {
		if w.Ready() && w.Window.Contains(at) {
			return w, true
		}
	}
	return SegmentWindow{}, false
}

// SceneAt reports the scene whose narration is audible at at.
func (t *Track) SceneAt(at float64) (int, bool) {
	w, ok := t.ActiveSegment(at)
	if !ok {
		return 0, false
	}
	return w.SceneIndex, true
}

// SceneEnd returns the end of the last narration window of the scene at index.
func (t *Track) SceneEnd(index int) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	end, found := 0.0, false
	for _, w := range t.windowsLocked() {
		if w.SceneIndex == index {
			end, found = w.Window.End, true
		}
	}
	return end, found
}

// windowID identifies one spoken part. Repeated lines in a scene share a cache
// key, so the part index keeps their windows distinct.
func windowID(w SegmentWindow) string {
	return w.SceneID + "#" + strconv.Itoa(w.PartIndex) + "#" + w.CacheKey
}

// Sync makes the player match the clock at at: it starts a newly active
// segment at the right offset, leaves a running one alone and stops playback
// when no segment is active. Parts that failed to play are skipped until the
// next ResumeAt.
func (t *Track) Sync(ctx context.Context, at float64) {
	t.mu.Lock()
	w, ok := activeWindow(t.windowsLocked(), at)
	id := ""
	if ok {
		id = windowID(w)
	}
	if id == t.current || (ok && t.failed[id]) {
		t.mu.Unlock()
		return
	}
	previous := t.current
	t.current = id
	t.mu.Unlock()

	if t.player == nil {
		return
	}
	if !ok {
		if previous != "" {
			t.player.Stop()
		}
		return
	}
	if err := t.player.Play(ctx, w.Segment, at-w.Window.Start); err != nil {
		t.mu.Lock()
		t.failed[id] = true
		if t.current == id {
			t.current = ""
		}
		t.mu.Unlock()
		logging.WarnWithContext(t.logger, "narration playback failed", "narration_playback_failed",
			logging.String(logging.FieldSceneID, w.SceneID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "segment skipped"),
		)
	}
}

// ResumeAt restarts narration from at, re-seeking the active segment even if
// it was already playing.
func (t *Track) ResumeAt(ctx context.Context, at float64) {
	t.mu.Lock()
	t.current = ""
	t.failed = make(map[string]bool)
	t.mu.Unlock()
	t.Sync(ctx, at)
}

// StopAll silences narration.
func (t *Track) StopAll() {
	t.mu.Lock()
	t.current = ""
	t.mu.Unlock()
	if t.player != nil {
		t.player.Stop()
	}
}

// InvalidateScene drops cached audio for the scene and detaches it from the
// current plan.
func (t *Track) InvalidateScene(sceneID string) {
	t.cache.InvalidateScene(sceneID)
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.plan {
		if t.plan[i].sceneID == sceneID {
			t.plan[i].seg = nil
		}
	}
}

// Reset stops playback and empties both the plan and the cache.
func (t *Track) Reset() {
	t.StopAll()
	t.cache.Reset()
	t.mu.Lock()
	t.plan = nil
	t.failed = make(map[string]bool)
	t.mu.Unlock()
}
