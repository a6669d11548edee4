package locator

import (
	"testing"

	"storyreel/internal/timeline"
)

type fakeNarration struct {
	scene map[float64]int
	ends  map[int]float64
}

func (f fakeNarration) SceneAt(t float64) (int, bool) {
	idx, ok := f.scene[t]
	return idx, ok
}

func (f fakeNarration) SceneEnd(index int) (float64, bool) {
	end, ok := f.ends[index]
	return end, ok
}

type recordingSeeker struct{ seeks []float64 }

func (s *recordingSeeker) Seek(seconds float64) { s.seeks = append(s.seeks, seconds) }

func scenes() []*timeline.Scene {
	return []*timeline.Scene{
		{ID: "a", DurationSeconds: 2},
		{ID: "b", DurationSeconds: 3},
		{ID: "c", DurationSeconds: 1},
	}
}

func TestLocateAlwaysInRange(t *testing.T) {
	l := New(nil, nil)
	l.SetScenes(scenes())
	for ts := 0.0; ts <= 6.0; ts += 0.25 {
		for _, playing := range []bool{true, false} {
			idx := l.Locate(ts, playing)
			if idx < 0 || idx >= 3 {
				t.Fatalf("Locate(%v, %v) = %d out of range", ts, playing, idx)
			}
		}
	}
	if got := l.Locate(2.5, false); got != 1 {
		t.Fatalf("expected boundary lookup 1, got %d", got)
	}
}

func TestLocateEmptyTimeline(t *testing.T) {
	if got := New(nil, nil).Locate(1, true); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}

func TestLocatePrefersNarrationWhilePlaying(t *testing.T) {
	l := New(fakeNarration{scene: map[float64]int{2.5: 0}}, nil)
	l.SetScenes(scenes())
	if got := l.Locate(2.5, true); got != 0 {
		t.Fatalf("narration should win while playing, got %d", got)
	}
	if got := l.Locate(2.5, false); got != 1 {
		t.Fatalf("boundaries should be used while paused, got %d", got)
	}
}

func TestManualSelectionWhilePaused(t *testing.T) {
	seeker := &recordingSeeker{}
	l := New(fakeNarration{ends: map[int]float64{1: 4.2}}, seeker)
	l.SetScenes(scenes())

	if !l.Select(2, SelectOptions{}) {
		t.Fatal("select should succeed")
	}
	if len(seeker.seeks) != 1 || seeker.seeks[0] != 4.2 {
		t.Fatalf("expected seek to previous narration end 4.2, got %v", seeker.seeks)
	}
	if got := l.Locate(0.5, false); got != 2 {
		t.Fatalf("manual selection should win while paused, got %d", got)
	}
	if got := l.Locate(0.5, true); got != 0 {
		t.Fatalf("manual selection must not apply while playing, got %d", got)
	}

	l.ClearManual()
	if _, ok := l.Manual(); ok {
		t.Fatal("manual selection should be cleared")
	}
}

func TestSelectFallsBackToNominalStart(t *testing.T) {
	seeker := &recordingSeeker{}
	l := New(nil, seeker)
	l.SetScenes(scenes())
	l.Select(1, SelectOptions{})
	l.Select(0, SelectOptions{})
	l.Select(2, SelectOptions{SkipSeek: true})
	if len(seeker.seeks) != 2 || seeker.seeks[0] != 2 || seeker.seeks[1] != 0 {
		t.Fatalf("unexpected seeks %v", seeker.seeks)
	}
	if l.Select(5, SelectOptions{}) {
		t.Fatal("out of range selection should fail")
	}
}
