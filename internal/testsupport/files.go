package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"storyreel/internal/timeline"
)

// SampleTimeline returns a three-scene timeline with stable scene IDs. The
// second scene has two spoken parts and the third has a trimmed sub-clip.
func SampleTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		FramesPerSecond: 30,
		Resolution:      timeline.Resolution{Width: 1080, Height: 1920},
		PlaybackSpeed:   1,
		Scenes: []*timeline.Scene{
			{
				ID: "s1", OrderIndex: 0, ImageRef: "img/1.png", Script: "Hello there. Welcome!",
				DurationSeconds: 3, TransitionKind: "fade", TransitionDurationSeconds: 0.5,
				Overlay: timeline.Overlay{Text: "Hello", Font: "Go", Color: "#ffffff", Position: "bottom"},
			},
			{
				ID: "s2", OrderIndex: 1, ImageRef: "img/2.png", Script: "First line||Second line",
				DurationSeconds: 4,
				Overlay:         timeline.Overlay{Text: "Two", Font: "Go", FontWeight: "700", Color: "#ffcc00", Position: "center"},
			},
			{
				ID: "s3", OrderIndex: 2, ImageRef: "clip/3.mp4", Script: "Goodbye",
				DurationSeconds: 2, TransitionKind: "slide", TransitionDurationSeconds: 1,
				SelectionStartSeconds: timeline.Float(1), SelectionEndSeconds: timeline.Float(1.5),
				SourceClipDurationSeconds: timeline.Float(10),
				Overlay: timeline.Overlay{Text: "Bye", Font: "Go", Color: "#ffffff", Position: "top"},
			},
		},
	}
}

// WriteTimeline writes tl as JSON to path and returns path.
func WriteTimeline(t testing.TB, path string, tl *timeline.Timeline) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data, err := json.MarshalIndent(tl, "", "  ")
	if err != nil {
		t.Fatalf("marshal timeline: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
