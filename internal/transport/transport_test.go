package transport

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func TestSeekClampsAndRoundTrips(t *testing.T) {
	tr := New(WithDuration(10))
	for _, at := range []float64{0, 0.5, 3.25, 9.999, 10} {
		tr.Seek(at)
		if got := tr.Time(); got != at {
			t.Fatalf("Seek(%v) then Time() = %v", at, got)
		}
	}
	tr.Seek(-4)
	if tr.Time() != 0 {
		t.Fatalf("negative seek not clamped: %v", tr.Time())
	}
	tr.Seek(40)
	if tr.Time() != 10 {
		t.Fatalf("seek past end not clamped: %v", tr.Time())
	}
}

func TestPlayPauseEmitOnlyOnChange(t *testing.T) {
	tr := New(WithDuration(5))
	rec := &recorder{}
	unsubscribe := tr.Subscribe(rec.listen)

	tr.Play()
	tr.Play()
	tr.Pause()
	tr.Pause()

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[0] != EventPlay || kinds[1] != EventPause {
		t.Fatalf("unexpected events %v", kinds)
	}

	unsubscribe()
	tr.Play()
	if len(rec.kinds()) != 2 {
		t.Fatal("listener still called after unsubscribe")
	}
}

func TestTickAdvancesOnlyWhilePlaying(t *testing.T) {
	tr := New(WithDuration(10), WithSpeed(2))
	tr.Tick(1)
	if tr.Time() != 0 {
		t.Fatalf("paused transport advanced to %v", tr.Time())
	}
	tr.Play()
	tr.Tick(1)
	if tr.Time() != 2 {
		t.Fatalf("expected speed-scaled advance to 2, got %v", tr.Time())
	}
}

func TestSeekWhilePlayingKeepsPlaying(t *testing.T) {
	tr := New(WithDuration(10))
	tr.Play()
	tr.Seek(4)
	if !tr.Playing() {
		t.Fatal("seek must not stop playback")
	}
	tr.Tick(0.5)
	if tr.Time() != 4.5 {
		t.Fatalf("expected 4.5, got %v", tr.Time())
	}
}

func TestTickPastEndPausesAndEmitsEnded(t *testing.T) {
	tr := New(WithDuration(3))
	rec := &recorder{}
	tr.Subscribe(rec.listen)
	tr.Play()
	tr.Tick(5)
	if tr.Time() != 3 || tr.Playing() {
		t.Fatalf("expected clamped paused clock, got %+v", tr.State())
	}
	kinds := rec.kinds()
	if kinds[len(kinds)-1] != EventEnded || kinds[len(kinds)-2] != EventTick {
		t.Fatalf("unexpected event order %v", kinds)
	}

	tr.Play()
	if tr.Time() != 0 {
		t.Fatalf("play from end should restart at zero, got %v", tr.Time())
	}
}

func TestSetDurationClampsTime(t *testing.T) {
	tr := New(WithDuration(10))
	tr.Seek(8)
	tr.SetDuration(5)
	if tr.Time() != 5 {
		t.Fatalf("expected clamp to 5, got %v", tr.Time())
	}
	tr.SetSpeed(-1)
	if tr.State().Speed != 1 {
		t.Fatalf("negative speed accepted: %v", tr.State().Speed)
	}
}

func TestListenerMayCallBack(t *testing.T) {
	tr := New(WithDuration(10))
	tr.Subscribe(func(ev Event) {
		if ev.Kind == EventPlay {
			tr.Seek(2)
		}
	})
	tr.Play()
	if tr.Time() != 2 {
		t.Fatalf("expected listener seek to apply, got %v", tr.Time())
	}
}

func TestRunTicksFromClock(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(0, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(100 * time.Millisecond)
		return now
	}
	tr := New(WithDuration(100), WithClock(clock))
	tr.Play()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, 200)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for tr.Time() < 0.5 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("clock did not advance, time=%v", tr.Time())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	<-done
}
