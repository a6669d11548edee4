package seek

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"storyreel/internal/render"
)

type journal struct{ steps []string }

func (j *journal) add(s string) { j.steps = append(j.steps, s) }

type fakeTransport struct {
	j       *journal
	playing bool
	time    float64
}

func (f *fakeTransport) Playing() bool {
	f.j.add("capture")
	return f.playing
}

func (f *fakeTransport) Seek(seconds float64) {
	f.j.add("transport.seek")
	f.time = seconds
}

type fakeNarration struct{ j *journal }

func (f fakeNarration) ResumeAt(context.Context, float64) { f.j.add("narration.resume") }
func (f fakeNarration) StopAll()                          { f.j.add("narration.stop") }

type fakeMusic struct {
	j        *journal
	template string
}

func (f fakeMusic) Template() string              { return f.template }
func (f fakeMusic) Seek(context.Context, float64) { f.j.add("bgm.seek") }

func renderer(j *journal, got *render.Options) render.Renderer {
	return render.Func(func(_ context.Context, _ float64, opts render.Options) error {
		j.add("render")
		*got = opts
		return errors.New("canvas busy")
	})
}

func TestSeekWhilePlaying(t *testing.T) {
	j := &journal{}
	var opts render.Options
	tr := &fakeTransport{j: j, playing: true}
	o := New(tr, fakeNarration{j}, fakeMusic{j, "lofi"}, renderer(j, &opts), nil)
	o.Seek(context.Background(), 4)

	want := []string{"capture", "transport.seek", "narration.resume", "bgm.seek", "render"}
	if !reflect.DeepEqual(j.steps, want) {
		t.Fatalf("steps = %v, want %v", j.steps, want)
	}
	if !opts.SkipAnimation || tr.time != 4 {
		t.Fatalf("expected skipped animation at 4, got %+v time=%v", opts, tr.time)
	}
}

func TestSeekWhilePaused(t *testing.T) {
	j := &journal{}
	var opts render.Options
	o := New(&fakeTransport{j: j}, fakeNarration{j}, fakeMusic{j, "lofi"}, renderer(j, &opts), nil)
	o.Seek(context.Background(), 1)

	want := []string{"capture", "transport.seek", "narration.stop", "render"}
	if !reflect.DeepEqual(j.steps, want) {
		t.Fatalf("steps = %v, want %v", j.steps, want)
	}
	if opts.SkipAnimation {
		t.Fatal("paused seek should allow animation replay")
	}
}

func TestSeekWithoutMusicTemplate(t *testing.T) {
	j := &journal{}
	o := New(&fakeTransport{j: j, playing: true}, nil, fakeMusic{j, ""}, nil, nil)
	o.Seek(context.Background(), 2)
	want := []string{"capture", "transport.seek"}
	if !reflect.DeepEqual(j.steps, want) {
		t.Fatalf("steps = %v, want %v", j.steps, want)
	}
}

func TestSeekToPassesRenderHints(t *testing.T) {
	j := &journal{}
	var opts render.Options
	o := New(&fakeTransport{j: j}, nil, nil, renderer(j, &opts), nil)
	o.SeekTo(context.Background(), 2, Options{ForceSceneIndex: render.Index(1), FontKey: "Go:400"})
	if opts.ForceSceneIndex == nil || *opts.ForceSceneIndex != 1 || opts.FontKey != "Go:400" {
		t.Fatalf("render hints not forwarded: %+v", opts)
	}
}
