// Package playstate mirrors the transport's play flag into an external media
// session (lock screen controls, hardware keys, remote clients).
//
// The transport is the only owner of "is playing". The bridge pushes that value
// outward and forwards requests from the session back to Transport.Play or
// Transport.Pause; the session never keeps a flag the engine reads. Because the
// transport only emits on real changes and the bridge only pushes differences,
// a request that round-trips through the session settles after one step.
package playstate

import (
	"sync"

	"storyreel/internal/transport"
)

// MediaSession is the external consumer of the play flag.
type MediaSession interface {
	SetPlaying(playing bool)
}

// Authority is the single owner of the play flag.
type Authority interface {
	Playing() bool
	Play()
	Pause()
	Subscribe(transport.Listener) func()
}

// Bridge keeps a MediaSession in step with an Authority.
type Bridge struct {
	authority   Authority
	session     MediaSession
	unsubscribe func()

	mu     sync.Mutex
	pushed bool
	known  bool
}

// New subscribes to authority and pushes its current state to session.
func New(authority Authority, session MediaSession) *Bridge {
	b := &Bridge{authority: authority, session: session}
	b.unsubscribe = authority.Subscribe(func(ev transport.Event) {
		b.push(ev.State.Playing)
	})
	b.push(authority.Playing())
	return b
}

func (b *Bridge) push(playing bool) {
	b.mu.Lock()
	if b.known && b.pushed == playing {
		b.mu.Unlock()
		return
	}
	b.known = true
	b.pushed = playing
	b.mu.Unlock()
	if b.session != nil {
		b.session.SetPlaying(playing)
	}
}

// RequestPlaying handles a play/pause request coming from the session side.
func (b *Bridge) RequestPlaying(playing bool) {
	if playing {
		b.authority.Play()
		return
	}
	b.authority.Pause()
}

// Toggle flips the authoritative state.
func (b *Bridge) Toggle() {
	b.RequestPlaying(!b.authority.Playing())
}

// Close detaches the bridge from the authority.
func (b *Bridge) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}
