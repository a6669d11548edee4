package preview_test

import (
	"context"
	"errors"
	"testing"

	"storyreel/internal/preview"
	"storyreel/internal/services"
	"storyreel/internal/testsupport"
	"storyreel/internal/timeline"
)

func TestManagerLifecycle(t *testing.T) {
	m := preview.NewManager(preview.Options{VoiceID: "v", FramesPerSecond: 60}, preview.Collaborators{
		Synthesizer: &testsupport.Synth{},
	})
	defer m.CloseAll()

	s, err := m.Create(context.Background(), testsupport.SampleTimeline(), preview.Collaborators{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if ids := m.List(); len(ids) != 1 || ids[0] != s.ID {
		t.Fatalf("unexpected ids %v", ids)
	}

	if !m.Remove(s.ID) {
		t.Fatal("remove should report the session")
	}
	if _, err := m.Get(s.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if m.Remove(s.ID) {
		t.Fatal("second remove should report nothing")
	}
}

func TestManagerRejectsInvalidTimeline(t *testing.T) {
	m := preview.NewManager(preview.Options{}, preview.Collaborators{Synthesizer: &testsupport.Synth{}})
	tl := &timeline.Timeline{FramesPerSecond: 30, PlaybackSpeed: 1, Scenes: []*timeline.Scene{{ID: "a"}}}
	if _, err := m.Create(context.Background(), tl, preview.Collaborators{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(m.List()) != 0 {
		t.Fatal("failed create must not register a session")
	}
}

func TestNewSessionRequiresSynthesizer(t *testing.T) {
	if _, err := preview.NewSession(context.Background(), nil, preview.Collaborators{}, preview.Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
