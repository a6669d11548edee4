package preview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"storyreel/internal/bgm"
	"storyreel/internal/config"
	"storyreel/internal/editops"
	"storyreel/internal/fonts"
	"storyreel/internal/locator"
	"storyreel/internal/logging"
	"storyreel/internal/narration"
	"storyreel/internal/playstate"
	"storyreel/internal/render"
	"storyreel/internal/seek"
	"storyreel/internal/services"
	"storyreel/internal/timeline"
	"storyreel/internal/transport"
)

// Collaborators are the external systems a session drives. Synthesizer is
// required; the rest may be nil.
type Collaborators struct {
	Synthesizer narration.Synthesizer
	Uploader    narration.Uploader
	Narration   narration.Player
	Music       bgm.Player
	Renderer    render.Renderer
	Session     playstate.MediaSession
	Fonts       *fonts.Loader
}

// Options tunes a session.
type Options struct {
	VoiceID              string
	Delimiter            string
	SceneTransitionPause bool
	Concurrency          int
	FramesPerSecond      int
	DefaultFontKey       string
	// AutoPrepare synthesizes narration in the background after every edit.
	AutoPrepare bool
	Logger      *slog.Logger
}

// OptionsFromConfig maps configuration onto session options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		VoiceID:              cfg.Narration.VoiceID,
		Delimiter:            cfg.Narration.PartDelimiter,
		SceneTransitionPause: cfg.Narration.SceneTransitionPause,
		Concurrency:          cfg.Narration.PrepareConcurrency,
		FramesPerSecond:      cfg.Playback.FramesPerSecond,
		DefaultFontKey:       fonts.Key(cfg.Fonts.DefaultFamily, cfg.Fonts.DefaultWeight),
		Logger:               logger,
	}
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID          string                    `json:"id"`
	Transport   transport.State           `json:"transport"`
	SceneIndex  int                       `json:"sceneIndex"`
	SceneID     string                    `json:"sceneId,omitempty"`
	Manual      bool                      `json:"manual"`
	BGMState    string                    `json:"bgmState"`
	BGMTemplate string                    `json:"bgmTemplate,omitempty"`
	FontKey     string                    `json:"fontKey,omitempty"`
	Cached      int                       `json:"cachedSegments"`
	Windows     []narration.SegmentWindow `json:"-"`
}

// Session is one editing session's playback engine.
type Session struct {
	ID string

	ctx       context.Context
	opts      Options
	logger    *slog.Logger
	transport *transport.Transport
	track     *narration.Track
	locator   *locator.Locator
	music     *bgm.Controller
	seeker    *seek.Orchestrator
	bridge    *playstate.Bridge
	renderer  render.Renderer
	fonts     *fonts.Loader
	fontReq   *fonts.Requester
	unsub     func()

	mu        sync.Mutex
	timeline  *timeline.Timeline
	scene     int
	fontKey   string
	wantFont  string
	preparing bool
}

func emptyTimeline(opts Options) *timeline.Timeline {
	fps := opts.FramesPerSecond
	if fps <= 0 {
		fps = 30
	}
	return &timeline.Timeline{FramesPerSecond: fps, PlaybackSpeed: 1}
}

type seekerFunc func(float64)

func (f seekerFunc) Seek(seconds float64) { f(seconds) }

// NewSession builds a session over a copy of tl. ctx bounds background work
// such as narration synthesis and font loading.
func NewSession(ctx context.Context, tl *timeline.Timeline, collab Collaborators, opts Options) (*Session, error) {
	if collab.Synthesizer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "preview", "new session", "synthesizer required", nil)
	}
	if tl == nil {
		tl = emptyTimeline(opts)
	}
	tl = tl.Clone()
	if err := tl.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "preview", "new session", "invalid timeline", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()
	ctx = services.WithSessionID(ctx, id)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "preview"))

	s := &Session{
		ID:       id,
		ctx:      ctx,
		opts:     opts,
		logger:   logger,
		timeline: tl,
		scene:    -1,
		fontKey:  opts.DefaultFontKey,
		fonts:    collab.Fonts,
		renderer: collab.Renderer,
	}
	if s.renderer == nil {
		s.renderer = render.Nop{}
	}
	if s.fonts != nil {
		s.fontReq = s.fonts.NewRequester()
	}

	s.transport = transport.New(
		transport.WithDuration(tl.TotalDuration()),
		transport.WithSpeed(tl.PlaybackSpeed),
	)

	cacheOpts := []narration.CacheOption{narration.WithCacheLogger(logger)}
	if collab.Uploader != nil {
		cacheOpts = append(cacheOpts, narration.WithUploader(collab.Uploader))
	}
	cache := narration.NewCache(collab.Synthesizer, cacheOpts...)
	s.track = narration.NewTrack(cache, collab.Narration, narration.TrackOptions{
		VoiceID:              opts.VoiceID,
		Delimiter:            opts.Delimiter,
		SceneTransitionPause: opts.SceneTransitionPause,
		Concurrency:          opts.Concurrency,
		Logger:               logger,
	})
	s.track.Plan(tl)

	s.locator = locator.New(s.track, seekerFunc(s.seekToSelection))
	s.locator.SetScenes(tl.Scenes)

	musicPlayer := collab.Music
	if musicPlayer == nil {
		musicPlayer = bgm.NopPlayer{}
	}
	s.music = bgm.New(musicPlayer, s.transport, logger)
	s.seeker = seek.New(s.transport, s.track, s.music, s.renderer, logger)
	s.unsub = s.transport.Subscribe(s.onTransport)
	if collab.Session != nil {
		s.bridge = playstate.New(s.transport, collab.Session)
	}

	logger.Info("preview session created",
		logging.Int("scenes", len(tl.Scenes)),
		logging.Seconds("duration_seconds", tl.TotalDuration()),
	)
	return s, nil
}

func (s *Session) onTransport(ev transport.Event) {
	switch ev.Kind {
	case transport.EventPlay:
		s.locator.ClearManual()
		s.track.ResumeAt(s.ctx, ev.State.Time)
		s.music.OnPlayState(s.ctx, true)
		s.frame(ev.State.Time, true)
	case transport.EventPause:
		s.track.StopAll()
		s.music.OnPlayState(s.ctx, false)
	case transport.EventEnded:
		s.track.StopAll()
		s.music.OnPlayState(s.ctx, false)
		s.logger.Debug("preview reached the end", logging.Seconds("time", ev.State.Time))
	case transport.EventTick:
		s.frame(ev.State.Time, ev.State.Playing)
	}
}

// frame is the per-tick work while playing.
func (s *Session) frame(t float64, playing bool) {
	idx := s.locator.Locate(t, playing)
	if playing {
		s.track.Sync(s.ctx, t)
	}
	s.noteScene(idx)
	opts := render.Options{FontKey: s.ensureFont(idx)}
	if idx >= 0 {
		opts.ForceSceneIndex = render.Index(idx)
	}
	if err := s.renderer.RenderAt(s.ctx, t, opts); err != nil {
		s.logger.Debug("frame render failed", logging.Seconds("time", t), logging.Error(err))
	}
}

func (s *Session) noteScene(idx int) {
	s.mu.Lock()
	changed := idx != s.scene
	s.scene = idx
	var id string
	if changed && idx >= 0 && idx < len(s.timeline.Scenes) {
		id = s.timeline.Scenes[idx].ID
	}
	s.mu.Unlock()
	if changed && id != "" {
		s.logger.Debug("active scene changed", logging.SceneIndex(idx), logging.String(logging.FieldSceneID, id))
	}
}

// ensureFont returns the overlay font key that is ready for the scene and
// starts loading the one it wants if needed. Until that load lands the last
// ready key keeps being used; a load that lands after the scene moved on is
// ignored.
func (s *Session) ensureFont(idx int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fonts == nil || idx < 0 || idx >= len(s.timeline.Scenes) {
		return s.fontKey
	}
	want := s.timeline.Scenes[idx].Overlay.FontKey()
	if want == s.fontKey {
		return s.fontKey
	}
	if _, ok := s.fonts.Lookup(want); ok {
		s.fontKey = want
		s.wantFont = want
		return want
	}
	if want != s.wantFont {
		s.wantFont = want
		s.fontReq.Request(s.ctx, want, func(f *fonts.Font) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.wantFont == f.Key {
				s.fontKey = f.Key
			}
		})
	}
	return s.fontKey
}

// Play starts playback.
func (s *Session) Play() { s.transport.Play() }

// Pause pauses playback.
func (s *Session) Pause() { s.transport.Pause() }

// Seek is a time-based seek (timeline scrubbing). It drops any manual scene
// selection.
func (s *Session) Seek(ctx context.Context, t float64) {
	s.locator.ClearManual()
	s.seeker.SeekTo(s.withSession(ctx), t, seek.Options{FontKey: s.currentFont()})
}

// SelectScene pins a scene. Unless opts.SkipSeek, the clock moves to the end
// of the previous scene's narration so the scene's transition plays from its
// start.
func (s *Session) SelectScene(ctx context.Context, index int, opts locator.SelectOptions) bool {
	if !s.locator.Select(index, opts) {
		return false
	}
	if opts.SkipSeek {
		t := s.transport.Time()
		fontKey := s.ensureFont(index)
		if err := s.renderer.RenderAt(s.withSession(ctx), t, render.Options{
			ForceSceneIndex: render.Index(index),
			FontKey:         fontKey,
		}); err != nil {
			s.logger.Debug("render after select failed", logging.Error(err))
		}
	}
	s.noteScene(index)
	return true
}

func (s *Session) seekToSelection(t float64) {
	opts := seek.Options{FontKey: s.currentFont()}
	if idx, ok := s.locator.Manual(); ok {
		opts.ForceSceneIndex = render.Index(idx)
		opts.FontKey = s.ensureFont(idx)
	}
	s.seeker.SeekTo(s.ctx, t, opts)
}

func (s *Session) currentFont() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fontKey
}

func (s *Session) withSession(ctx context.Context) context.Context {
	if ctx == nil {
		return s.ctx
	}
	return services.WithSessionID(ctx, s.ID)
}

// Time reports the clock position.
func (s *Session) Time() float64 { return s.transport.Time() }

// Tick advances the clock by delta seconds. The frame loop calls this; tests
// and headless runs may call it directly.
func (s *Session) Tick(delta float64) { s.transport.Tick(delta) }

// Run drives the frame loop until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	s.transport.Run(ctx, s.opts.FramesPerSecond)
}

// ConfirmBGM selects a music template.
func (s *Session) ConfirmBGM(ctx context.Context, templateID string) bgm.State {
	return s.music.Confirm(s.withSession(ctx), templateID, s.transport.Playing())
}

// ClearBGM removes the music template, stopping music.
func (s *Session) ClearBGM(ctx context.Context) bgm.State {
	return s.music.Clear(s.withSession(ctx))
}

// Prepare synthesizes all missing narration.
func (s *Session) Prepare(ctx context.Context) error {
	return s.track.Prepare(s.withSession(ctx))
}

// Timeline returns a copy of the current timeline.
func (s *Session) Timeline() *timeline.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Clone()
}

// Payload renders the current timeline into the renderer document.
func (s *Session) Payload() timeline.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Payload()
}

// Windows returns the narration layout.
func (s *Session) Windows() []narration.SegmentWindow { return s.track.Windows() }

// BGMTemplate returns the confirmed music template.
func (s *Session) BGMTemplate() string { return s.music.Template() }

// Snapshot reports the session state.
func (s *Session) Snapshot() Snapshot {
	state := s.transport.State()
	idx := s.locator.Locate(state.Time, state.Playing)
	manual, isManual := s.locator.Manual()
	if isManual && !state.Playing {
		idx = manual
	}
	s.mu.Lock()
	snap := Snapshot{
		ID:          s.ID,
		Transport:   state,
		SceneIndex:  idx,
		Manual:      isManual,
		BGMState:    s.music.State().String(),
		BGMTemplate: s.music.Template(),
		FontKey:     s.fontKey,
		Cached:      s.track.Cache().Len(),
	}
	if idx >= 0 && idx < len(s.timeline.Scenes) {
		snap.SceneID = s.timeline.Scenes[idx].ID
	}
	s.mu.Unlock()
	snap.Windows = s.track.Windows()
	return snap
}

// ApplySelectionRange trims the scene at index.
func (s *Session) ApplySelectionRange(index int, start, end float64) editops.Change {
	return s.edit(func(scenes []*timeline.Scene) ([]*timeline.Scene, editops.Change) {
		return editops.ApplySelectionRange(scenes, index, start, end)
	})
}

// ApplyOriginalVideoDuration records the source clip length of the scene at index.
func (s *Session) ApplyOriginalVideoDuration(index int, duration float64) editops.Change {
	return s.edit(func(scenes []*timeline.Scene) ([]*timeline.Scene, editops.Change) {
		return editops.ApplyOriginalVideoDuration(scenes, index, duration)
	})
}

// ReorderScenes applies a permutation of scene positions.
func (s *Session) ReorderScenes(order []int) editops.Change {
	return s.edit(func(scenes []*timeline.Scene) ([]*timeline.Scene, editops.Change) {
		return editops.ReorderScenes(scenes, order)
	})
}

// UpdateScript replaces a scene's narration script.
func (s *Session) UpdateScript(sceneID, script string) editops.Change {
	return s.edit(func(scenes []*timeline.Scene) ([]*timeline.Scene, editops.Change) {
		return editops.ApplyScript(scenes, sceneID, script)
	})
}

// RemoveScene deletes a scene.
func (s *Session) RemoveScene(sceneID string) editops.Change {
	return s.edit(func(scenes []*timeline.Scene) ([]*timeline.Scene, editops.Change) {
		return editops.RemoveScene(scenes, sceneID)
	})
}

// edit applies op and, when it changed something, invalidates narration for
// the scenes whose script changed and re-derives everything time-based.
func (s *Session) edit(op func([]*timeline.Scene) ([]*timeline.Scene, editops.Change)) editops.Change {
	s.mu.Lock()
	scenes, change := op(s.timeline.Scenes)
	if !change.Applied {
		s.mu.Unlock()
		return change
	}
	s.timeline.Scenes = scenes
	tl := s.timeline.Clone()
	s.mu.Unlock()

	for _, id := range change.NarrationIDs {
		s.track.InvalidateScene(id)
	}
	s.track.Plan(tl)
	s.locator.SetScenes(tl.Scenes)
	s.transport.SetDuration(tl.TotalDuration())
	s.logger.Debug("timeline edited",
		logging.Any("scene_ids", change.SceneIDs),
		logging.Bool("reordered", change.Reordered),
	)
	if s.opts.AutoPrepare {
		s.prepareInBackground()
	}
	return change
}

func (s *Session) prepareInBackground() {
	s.mu.Lock()
	if s.preparing {
		s.mu.Unlock()
		return
	}
	s.preparing = true
	s.mu.Unlock()
	go func() {
		defer func() {
			s.mu.Lock()
			s.preparing = false
			s.mu.Unlock()
		}()
		if err := s.track.Prepare(s.ctx); err != nil {
			s.logger.Debug("background prepare stopped", logging.Error(err))
		}
	}()
}

// Reset rewinds and empties the session: narration cache, music and the
// manual selection are cleared, and the timeline is replaced by tl.
func (s *Session) Reset(tl *timeline.Timeline) error {
	if tl == nil {
		tl = emptyTimeline(s.opts)
	}
	tl = tl.Clone()
	if err := tl.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "preview", "reset", "invalid timeline", err)
	}
	s.transport.Reset()
	s.track.Reset()
	s.music.Clear(s.ctx)
	s.locator.ClearManual()

	s.mu.Lock()
	s.timeline = tl
	s.scene = -1
	s.mu.Unlock()

	s.track.Plan(tl)
	s.locator.SetScenes(tl.Scenes)
	s.transport.SetDuration(tl.TotalDuration())
	s.transport.SetSpeed(tl.PlaybackSpeed)
	return nil
}

// Close detaches listeners and silences output.
func (s *Session) Close() {
	s.transport.Pause()
	if s.unsub != nil {
		s.unsub()
	}
	if s.bridge != nil {
		s.bridge.Close()
	}
	s.track.StopAll()
	s.music.Stop()
}

// Bridge exposes the media-session bridge, nil when no session collaborator
// was supplied.
func (s *Session) Bridge() *playstate.Bridge { return s.bridge }

func (s *Session) String() string {
	return fmt.Sprintf("preview session %s", s.ID)
}
