package transport

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"
)

// EventKind names what changed.
type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	EventSeek
	EventTick
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventSeek:
		return "seek"
	case EventTick:
		return "tick"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// State is a snapshot of the clock.
type State struct {
	Time     float64 `json:"time"`
	Playing  bool    `json:"playing"`
	Speed    float64 `json:"speed"`
	Duration float64 `json:"duration"`
}

// Event is delivered to listeners after each state change.
type Event struct {
	Kind  EventKind
	State State
	// Previous is the clock time before the change.
	Previous float64
}

// Listener observes transport events.
type Listener func(Event)

// Option customizes a Transport.
type Option func(*Transport)

// WithDuration sets the initial total duration.
func WithDuration(seconds float64) Option {
	return func(t *Transport) { t.state.Duration = sanitize(seconds) }
}

// WithSpeed sets the initial playback speed multiplier.
func WithSpeed(speed float64) Option {
	return func(t *Transport) {
		if speed > 0 {
			t.state.Speed = speed
		}
	}
}

// WithClock overrides the wall clock used by Run (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(t *Transport) {
		if now != nil {
			t.now = now
		}
	}
}

// Transport is the play/pause/seek authority for one preview session.
type Transport struct {
	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
	now       func() time.Time
}

// New constructs a paused transport at time zero.
func New(opts ...Option) *Transport {
	t := &Transport{
		state:     State{Speed: 1},
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe registers a listener and returns a function that removes it.
func (t *Transport) Subscribe(l Listener) func() {
	if l == nil {
		return func() {}
	}
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = l
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// State returns a snapshot of the clock.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Time returns the current clock time in seconds.
func (t *Transport) Time() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Time
}

// Playing reports whether the clock is advancing.
func (t *Transport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Playing
}

// Play starts the clock. Playing from the very end restarts at zero. Calling
// Play while already playing is a no-op and emits nothing.
func (t *Transport) Play() {
	t.mu.Lock()
	if t.state.Playing {
		t.mu.Unlock()
		return
	}
	prev := t.state.Time
	if t.state.Duration > 0 && t.state.Time >= t.state.Duration {
		t.state.Time = 0
	}
	t.state.Playing = true
	ev := Event{Kind: EventPlay, State: t.state, Previous: prev}
	t.mu.Unlock()
	t.emit(ev)
}

// Pause stops the clock, keeping the current time.
func (t *Transport) Pause() {
	t.mu.Lock()
	if !t.state.Playing {
		t.mu.Unlock()
		return
	}
	t.state.Playing = false
	ev := Event{Kind: EventPause, State: t.state, Previous: t.state.Time}
	t.mu.Unlock()
	t.emit(ev)
}

// Seek repositions the clock, clamped to [0, duration]. It does not change the
// play state; resynchronizing dependent media is the caller's job.
func (t *Transport) Seek(seconds float64) {
	t.mu.Lock()
	prev := t.state.Time
	t.state.Time = clamp(seconds, t.state.Duration)
	ev := Event{Kind: EventSeek, State: t.state, Previous: prev}
	t.mu.Unlock()
	t.emit(ev)
}

// Tick advances the clock by delta wall-clock seconds scaled by the playback
// speed. It does nothing while paused. Reaching the end pauses the clock and
// emits EventEnded after the final EventTick.
func (t *Transport) Tick(delta float64) {
	t.mu.Lock()
	if !t.state.Playing || !(delta > 0) || math.IsInf(delta, 0) {
		t.mu.Unlock()
		return
	}
	prev := t.state.Time
	t.state.Time = clamp(prev+delta*t.state.Speed, t.state.Duration)
	events := []Event{{Kind: EventTick, State: t.state, Previous: prev}}
	if t.state.Time >= t.state.Duration {
		t.state.Playing = false
		events = append(events, Event{Kind: EventEnded, State: t.state, Previous: prev})
	}
	t.mu.Unlock()
	for _, ev := range events {
		t.emit(ev)
	}
}

// SetDuration updates the total duration and clamps the current time into it.
func (t *Transport) SetDuration(seconds float64) {
	t.mu.Lock()
	t.state.Duration = sanitize(seconds)
	prev := t.state.Time
	t.state.Time = clamp(prev, t.state.Duration)
	changed := t.state.Time != prev
	ev := Event{Kind: EventSeek, State: t.state, Previous: prev}
	t.mu.Unlock()
	if changed {
		t.emit(ev)
	}
}

// SetSpeed updates the playback speed multiplier. Non-positive values are ignored.
func (t *Transport) SetSpeed(speed float64) {
	if !(speed > 0) || math.IsInf(speed, 0) {
		return
	}
	t.mu.Lock()
	t.state.Speed = speed
	t.mu.Unlock()
}

// Reset pauses and rewinds the clock to zero.
func (t *Transport) Reset() {
	t.Pause()
	t.Seek(0)
}

// Run drives Tick from a frame ticker until ctx is cancelled. Deltas are
// measured from the wall clock so slow frames do not slow the preview.
func (t *Transport) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := t.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := t.now()
			delta := now.Sub(last).Seconds()
			last = now
			t.Tick(delta)
		}
	}
}

func (t *Transport) emit(ev Event) {
	t.mu.Lock()
	listeners := make([]Listener, 0, len(t.listeners))
	ids := make([]int, 0, len(t.listeners))
	for id := range t.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, t.listeners[id])
	}
	t.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func clamp(v, limit float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
