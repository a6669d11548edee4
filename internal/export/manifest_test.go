package export

import (
	"testing"

	"storyreel/internal/narration"
	"storyreel/internal/timeline"
)

func TestNarrationRefsSkipsUnresolvedWindows(t *testing.T) {
	windows := []narration.SegmentWindow{
		{SceneID: "s1", Window: timeline.Window{Start: 0, End: 1.5}, Segment: &narration.Segment{SceneID: "s1", URL: "https://cdn/s1-0.mp3"}},
		{SceneID: "s2", Window: timeline.Window{Start: 1.5, End: 4}},
		{SceneID: "s2", PartIndex: 1, Window: timeline.Window{Start: 4, End: 5}, Segment: &narration.Segment{SceneID: "s2", PartIndex: 1}},
	}
	refs := NarrationRefs(windows)
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].URL != "https://cdn/s1-0.mp3" || refs[0].DurationSeconds != 1.5 {
		t.Fatalf("unexpected first ref %+v", refs[0])
	}
	if refs[1].PartIndex != 1 || refs[1].StartSeconds != 4 || refs[1].DurationSeconds != 1 {
		t.Fatalf("unexpected second ref %+v", refs[1])
	}
}

func TestNewManifestCarriesPayload(t *testing.T) {
	tl := &timeline.Timeline{
		FramesPerSecond: 30,
		PlaybackSpeed:   1,
		Scenes:          []*timeline.Scene{{ID: "s1", DurationSeconds: 2}},
	}
	m := NewManifest("promo", "d1", tl, nil, "lofi")
	if m.Name != "promo" || m.DraftID != "d1" || m.BGMTemplate != "lofi" {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if len(m.Timeline.Scenes) != 1 || len(m.Narration) != 0 {
		t.Fatalf("unexpected manifest content %+v", m)
	}
}

func TestManifestAnnouncement(t *testing.T) {
	m := Manifest{
		ID:   "e1",
		Name: "Teaser",
		Timeline: timeline.Payload{Scenes: []timeline.PayloadScene{
			{SceneID: "a", Duration: 2.5},
			{SceneID: "b", Duration: 4},
		}},
		Narration: []NarrationRef{{SceneID: "a"}},
	}
	if got := m.DurationSeconds(); got != 6.5 {
		t.Fatalf("duration = %v, want 6.5", got)
	}
	p := m.Announcement()
	if p["scenes"] != 2 || p["narrationClips"] != 1 || p["name"] != "Teaser" {
		t.Fatalf("unexpected announcement %+v", p)
	}
}
