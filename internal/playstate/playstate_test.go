package playstate

import (
	"testing"

	"storyreel/internal/transport"
)

// echoSession behaves like a media session that reports every change back as a
// user request, the pattern that used to ping-pong forever.
type echoSession struct {
	bridge *Bridge
	pushes []bool
}

func (s *echoSession) SetPlaying(playing bool) {
	s.pushes = append(s.pushes, playing)
	if s.bridge != nil {
		s.bridge.RequestPlaying(playing)
	}
}

func TestBridgeMirrorsTransport(t *testing.T) {
	tr := transport.New(transport.WithDuration(10))
	session := &echoSession{}
	b := New(tr, session)
	defer b.Close()
	session.bridge = b

	tr.Play()
	tr.Seek(3)
	tr.Pause()

	want := []bool{false, true, false}
	if len(session.pushes) != len(want) {
		t.Fatalf("pushes = %v, want %v", session.pushes, want)
	}
	for i := range want {
		if session.pushes[i] != want[i] {
			t.Fatalf("pushes = %v, want %v", session.pushes, want)
		}
	}
	if tr.Playing() {
		t.Fatal("transport should be paused")
	}
}

func TestBridgeForwardsSessionRequests(t *testing.T) {
	tr := transport.New(transport.WithDuration(10))
	session := &echoSession{}
	b := New(tr, session)

	b.RequestPlaying(true)
	if !tr.Playing() {
		t.Fatal("request should start the transport")
	}
	b.Toggle()
	if tr.Playing() {
		t.Fatal("toggle should pause the transport")
	}

	b.Close()
	tr.Play()
	if got := len(session.pushes); got != 3 {
		t.Fatalf("closed bridge should stop pushing, got %d pushes", got)
	}
}

func TestBridgeReflectsEndOfTimeline(t *testing.T) {
	tr := transport.New(transport.WithDuration(1))
	session := &echoSession{}
	b := New(tr, session)
	defer b.Close()

	tr.Play()
	tr.Tick(2)
	if got := session.pushes[len(session.pushes)-1]; got {
		t.Fatal("reaching the end should push paused")
	}
}
