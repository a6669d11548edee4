package narration

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"storyreel/internal/timeline"
)

type playCall struct {
	key    string
	offset float64
}

type fakePlayer struct {
	mu    sync.Mutex
	plays []playCall
	stops int
	err   error
}

func (p *fakePlayer) Play(_ context.Context, seg *Segment, offset float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays = append(p.plays, playCall{key: seg.CacheKey, offset: offset})
	return p.err
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func sampleTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		FramesPerSecond: 30,
		PlaybackSpeed:   1,
		Scenes: []*timeline.Scene{
			{ID: "s1", Script: "first", DurationSeconds: 3},
			{ID: "s2", Script: "second||third", DurationSeconds: 4},
			{ID: "s3", Script: "", DurationSeconds: 2},
		},
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTrackWindowsUseActualDurations(t *testing.T) {
	synth := &instantSynth{duration: 1.5}
	track := NewTrack(NewCache(synth), nil, TrackOptions{VoiceID: "v", Concurrency: 2})
	track.Plan(sampleTimeline())

	before := track.Windows()
	if len(before) != 4 {
		t.Fatalf("expected 4 windows, got %d", len(before))
	}
	if !approx(before[1].Window.Len(), 2) || before[1].Ready() {
		t.Fatalf("unresolved part should take nominal share, got %+v", before[1])
	}
	if _, ok := track.ActiveSegment(0.5); ok {
		t.Fatal("unresolved segment must not be active")
	}

	if err := track.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	after := track.Windows()
	if !approx(after[0].Window.End, 1.5) || !approx(after[2].Window.End, 4.5) {
		t.Fatalf("unexpected windows %+v", after)
	}
	if after[3].Ready() || !approx(after[3].Window.Len(), 2) {
		t.Fatalf("silent scene should keep its nominal window, got %+v", after[3])
	}

	w, ok := track.ActiveSegment(2.0)
	if !ok || w.SceneID != "s2" || w.PartIndex != 0 {
		t.Fatalf("unexpected active segment %+v ok=%v", w, ok)
	}
	if idx, ok := track.SceneAt(3.2); !ok || idx != 1 {
		t.Fatalf("expected scene 1, got %d ok=%v", idx, ok)
	}
	if end, ok := track.SceneEnd(0); !ok || !approx(end, 1.5) {
		t.Fatalf("expected scene 0 end 1.5, got %v", end)
	}
}

func TestTrackPrepareSkipsFailures(t *testing.T) {
	synth := &instantSynth{err: errors.New("quota")}
	track := NewTrack(NewCache(synth), nil, TrackOptions{VoiceID: "v"})
	track.Plan(sampleTimeline())
	if err := track.Prepare(context.Background()); err != nil {
		t.Fatalf("failures should be skipped, got %v", err)
	}
	for _, w := range track.Windows() {
		if w.Ready() {
			t.Fatalf("no window should be ready: %+v", w)
		}
	}
}

func TestTrackSyncDrivesPlayer(t *testing.T) {
	synth := &instantSynth{duration: 1}
	player := &fakePlayer{}
	track := NewTrack(NewCache(synth), player, TrackOptions{VoiceID: "v"})
	track.Plan(sampleTimeline())
	if err := track.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	track.Sync(ctx, 0.25)
	track.Sync(ctx, 0.5)
	if len(player.plays) != 1 || player.plays[0].key != "v::first" || !approx(player.plays[0].offset, 0.25) {
		t.Fatalf("unexpected plays %+v", player.plays)
	}

	track.Sync(ctx, 1.5)
	if len(player.plays) != 2 || player.plays[1].key != "v::second" {
		t.Fatalf("expected second part to start, got %+v", player.plays)
	}

	track.Sync(ctx, 3.5)
	if player.stops != 1 {
		t.Fatalf("expected stop in silent scene, got %d", player.stops)
	}

	track.ResumeAt(ctx, 1.75)
	if len(player.plays) != 3 || !approx(player.plays[2].offset, 0.75) {
		t.Fatalf("expected resume at offset 0.75, got %+v", player.plays)
	}

	track.StopAll()
	if player.stops != 2 {
		t.Fatalf("expected StopAll to stop player, got %d", player.stops)
	}
}

func TestTrackSyncSkipsSegmentThatFailsToPlay(t *testing.T) {
	synth := &instantSynth{duration: 1}
	player := &fakePlayer{err: errors.New("decode error")}
	track := NewTrack(NewCache(synth), player, TrackOptions{VoiceID: "v"})
	track.Plan(sampleTimeline())
	_ = track.Prepare(context.Background())

	track.Sync(context.Background(), 0.1)
	track.Sync(context.Background(), 0.2)
	if len(player.plays) != 1 {
		t.Fatalf("failed segment should not be retried until resume, got %d plays", len(player.plays))
	}
}

func TestTrackInvalidateSceneAfterScriptEdit(t *testing.T) {
	synth := &instantSynth{duration: 1}
	track := NewTrack(NewCache(synth), nil, TrackOptions{VoiceID: "v"})
	tl := sampleTimeline()
	track.Plan(tl)
	_ = track.Prepare(context.Background())

	track.InvalidateScene("s1")
	if _, ok := track.Cache().Lookup("v::first"); ok {
		t.Fatal("edited scene audio should be dropped")
	}
	if _, ok := track.Cache().Lookup("v::second"); !ok {
		t.Fatal("other scenes keep their audio")
	}

	tl.Scenes[0].Script = "changed"
	track.Plan(tl)
	_ = track.Prepare(context.Background())
	if synth.count("changed") != 1 || synth.count("second") != 1 {
		t.Fatalf("only the edited scene should be resynthesized: changed=%d second=%d",
			synth.count("changed"), synth.count("second"))
	}
}

func TestTrackPlanSurvivesReorder(t *testing.T) {
	synth := &instantSynth{duration: 1}
	track := NewTrack(NewCache(synth), nil, TrackOptions{VoiceID: "v"})
	tl := sampleTimeline()
	track.Plan(tl)
	_ = track.Prepare(context.Background())

	tl.Scenes[0], tl.Scenes[1] = tl.Scenes[1], tl.Scenes[0]
	track.Plan(tl)
	windows := track.Windows()
	if windows[0].SceneID != "s2" || !windows[0].Ready() || windows[2].SceneIndex != 1 {
		t.Fatalf("reorder should keep cached audio, got %+v", windows)
	}
}

func TestTrackReset(t *testing.T) {
	synth := &instantSynth{}
	player := &fakePlayer{}
	track := NewTrack(NewCache(synth), player, TrackOptions{VoiceID: "v"})
	track.Plan(sampleTimeline())
	_ = track.Prepare(context.Background())
	track.Reset()
	if len(track.Windows()) != 0 || track.Cache().Len() != 0 {
		t.Fatal("reset should clear plan and cache")
	}
}

func TestTrackPlaysRepeatedPartsOfOneScene(t *testing.T) {
	synth := &instantSynth{duration: 1}
	player := &fakePlayer{}
	track := NewTrack(NewCache(synth), player, TrackOptions{VoiceID: "v"})
	track.Plan(&timeline.Timeline{
		FramesPerSecond: 30,
		PlaybackSpeed:   1,
		Scenes:          []*timeline.Scene{{ID: "s1", Script: "Go||Go", DurationSeconds: 3}},
	})
	if err := track.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}
	if synth.count("Go") != 1 {
		t.Fatalf("identical parts should share one synthesis, got %d", synth.count("Go"))
	}
	if windows := track.Windows(); len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}

	ctx := context.Background()
	for at := 0.0; at < 1.5; at += 0.1 {
		track.Sync(ctx, at)
	}
	if len(player.plays) != 2 || player.plays[0].key != "v::Go" || player.plays[1].key != "v::Go" {
		t.Fatalf("expected both parts to play, got %+v", player.plays)
	}
}
