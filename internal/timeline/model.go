package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Transform positions overlay text relative to its anchor.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
}

// Overlay is the text drawn over a scene image.
type Overlay struct {
	Text       string    `json:"text"`
	Font       string    `json:"font"`
	FontWeight string    `json:"fontWeight,omitempty"`
	FontSize   float64   `json:"fontSize,omitempty"`
	Color      string    `json:"color"`
	Position   string    `json:"position"`
	Style      string    `json:"style,omitempty"`
	Transform  Transform `json:"transform"`
}

// FontKey identifies the font face the overlay needs (family:weight).
func (o Overlay) FontKey() string {
	weight := strings.TrimSpace(o.FontWeight)
	if weight == "" {
		weight = "400"
	}
	return strings.TrimSpace(o.Font) + ":" + weight
}

// Scene is one unit of the preview.
type Scene struct {
	ID                        string   `json:"sceneId"`
	OrderIndex                int      `json:"orderIndex"`
	ImageRef                  string   `json:"imageRef"`
	ImageFit                  string   `json:"imageFit,omitempty"`
	Script                    string   `json:"script"`
	DurationSeconds           float64  `json:"durationSeconds"`
	TransitionKind            string   `json:"transitionKind,omitempty"`
	TransitionDurationSeconds float64  `json:"transitionDurationSeconds,omitempty"`
	Overlay                   Overlay  `json:"overlay"`
	SelectionStartSeconds     *float64 `json:"selectionStartSeconds,omitempty"`
	SelectionEndSeconds       *float64 `json:"selectionEndSeconds,omitempty"`
	SourceClipDurationSeconds *float64 `json:"sourceClipDurationSeconds,omitempty"`
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	cp := *s
	cp.SelectionStartSeconds = cloneFloat(s.SelectionStartSeconds)
	cp.SelectionEndSeconds = cloneFloat(s.SelectionEndSeconds)
	cp.SourceClipDurationSeconds = cloneFloat(s.SourceClipDurationSeconds)
	return &cp
}

// HasSelection reports whether both trim bounds are set.
func (s *Scene) HasSelection() bool {
	return s.SelectionStartSeconds != nil && s.SelectionEndSeconds != nil
}

// SelectionLength returns the trimmed sub-clip length, or 0 without a selection.
func (s *Scene) SelectionLength() float64 {
	if !s.HasSelection() {
		return 0
	}
	return math.Max(0, *s.SelectionEndSeconds-*s.SelectionStartSeconds)
}

// EffectiveTransition returns how long the scene's entry transition plays.
// The transition is carved out of the scene's own window, so it never exceeds
// the scene duration, and for trimmed clips it never exceeds the selection.
func (s *Scene) EffectiveTransition() float64 {
	d := math.Max(0, s.TransitionDurationSeconds)
	d = math.Min(d, math.Max(0, s.DurationSeconds))
	if s.HasSelection() {
		d = math.Min(d, s.SelectionLength())
	}
	return d
}

// Resolution is the output frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Timeline is the ordered scene list plus global playback parameters.
type Timeline struct {
	FramesPerSecond int        `json:"framesPerSecond"`
	Resolution      Resolution `json:"resolution"`
	PlaybackSpeed   float64    `json:"playbackSpeed"`
	Scenes          []*Scene   `json:"scenes"`
}

// Window is a half-open [Start, End) interval on the timeline clock.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t < w.End
}

// Len returns the window length.
func (w Window) Len() float64 { return w.End - w.Start }

// Clone returns a deep copy of the timeline.
func (t *Timeline) Clone() *Timeline {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Scenes = make([]*Scene, len(t.Scenes))
	for i, s := range t.Scenes {
		cp.Scenes[i] = s.Clone()
	}
	return &cp
}

// TotalDuration is the sum of scene durations.
func (t *Timeline) TotalDuration() float64 {
	if t == nil {
		return 0
	}
	return TotalDuration(t.Scenes)
}

// TotalDuration sums scene durations, ignoring negative values.
func TotalDuration(scenes []*Scene) float64 {
	var total float64
	for _, s := range scenes {
		if s != nil && s.DurationSeconds > 0 {
			total += s.DurationSeconds
		}
	}
	return total
}

// Boundaries returns the cumulative window of every scene in order.
func Boundaries(scenes []*Scene) []Window {
	out := make([]Window, len(scenes))
	var cursor float64
	for i, s := range scenes {
		d := 0.0
		if s != nil && s.DurationSeconds > 0 {
			d = s.DurationSeconds
		}
		out[i] = Window{Start: cursor, End: cursor + d}
		cursor += d
	}
	return out
}

// IndexAt maps a clock time to the scene whose window contains it. Times before
// the start resolve to the first scene and times at or past the end resolve to
// the last one. It returns -1 only for an empty scene list.
func IndexAt(scenes []*Scene, t float64) int {
	if len(scenes) == 0 {
		return -1
	}
	if t <= 0 || math.IsNaN(t) {
		return 0
	}
	for i, w := range Boundaries(scenes) {
		if t < w.End {
			return i
		}
	}
	return len(scenes) - 1
}

// SceneStart returns the nominal start time of the scene at index.
func SceneStart(scenes []*Scene, index int) float64 {
	if index <= 0 {
		return 0
	}
	if index > len(scenes) {
		index = len(scenes)
	}
	return TotalDuration(scenes[:index])
}

// IndexOf returns the position of the scene with the given ID, or -1.
func IndexOf(scenes []*Scene, sceneID string) int {
	for i, s := range scenes {
		if s != nil && s.ID == sceneID {
			return i
		}
	}
	return -1
}

// SceneIDs lists scene IDs in timeline order.
func SceneIDs(scenes []*Scene) []string {
	ids := make([]string, 0, len(scenes))
	for _, s := range scenes {
		if s != nil {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Renumber rewrites OrderIndex to match slice position.
func Renumber(scenes []*Scene) {
	for i, s := range scenes {
		if s != nil {
			s.OrderIndex = i
		}
	}
}

// Normalize sorts scenes by OrderIndex, assigns IDs to scenes that lack one,
// renumbers OrderIndex and fills unset global parameters from defaults.
func (t *Timeline) Normalize(defaults Defaults) {
	if t.FramesPerSecond <= 0 {
		t.FramesPerSecond = defaults.FramesPerSecond
	}
	if t.PlaybackSpeed <= 0 {
		t.PlaybackSpeed = defaults.PlaybackSpeed
	}
	if t.Resolution.Width <= 0 || t.Resolution.Height <= 0 {
		t.Resolution = Resolution{Width: defaults.Width, Height: defaults.Height}
	}
	scenes := t.Scenes[:0]
	for _, s := range t.Scenes {
		if s != nil {
			scenes = append(scenes, s)
		}
	}
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].OrderIndex < scenes[j].OrderIndex
	})
	for _, s := range scenes {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
	}
	Renumber(scenes)
	t.Scenes = scenes
}

// Defaults supplies global parameters for timelines that omit them.
type Defaults struct {
	FramesPerSecond int
	PlaybackSpeed   float64
	Width           int
	Height          int
}

// Validate reports the first structural problem found in the timeline.
func (t *Timeline) Validate() error {
	if t == nil {
		return errors.New("timeline is nil")
	}
	if t.FramesPerSecond <= 0 {
		return errors.New("framesPerSecond must be positive")
	}
	if t.PlaybackSpeed <= 0 {
		return errors.New("playbackSpeed must be positive")
	}
	seen := make(map[string]struct{}, len(t.Scenes))
	for i, s := range t.Scenes {
		if s == nil {
			return fmt.Errorf("scene %d is nil", i)
		}
		if s.ID == "" {
			return fmt.Errorf("scene %d: sceneId is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("scene %d: duplicate sceneId %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}
		if !(s.DurationSeconds > 0) || math.IsInf(s.DurationSeconds, 0) {
			return fmt.Errorf("scene %s: durationSeconds must be positive", s.ID)
		}
		if s.TransitionDurationSeconds < 0 || s.TransitionDurationSeconds > s.DurationSeconds {
			return fmt.Errorf("scene %s: transitionDurationSeconds must be within [0, durationSeconds]", s.ID)
		}
		if s.HasSelection() && !(*s.SelectionEndSeconds > *s.SelectionStartSeconds) {
			return fmt.Errorf("scene %s: selectionEndSeconds must be greater than selectionStartSeconds", s.ID)
		}
		if s.SelectionStartSeconds != nil && *s.SelectionStartSeconds < 0 {
			return fmt.Errorf("scene %s: selectionStartSeconds must not be negative", s.ID)
		}
	}
	return nil
}

// Decode reads a JSON timeline document.
func Decode(r io.Reader) (*Timeline, error) {
	var tl Timeline
	if err := json.NewDecoder(r).Decode(&tl); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return &tl, nil
}

// Load reads a JSON timeline document from disk.
func Load(path string) (*Timeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open timeline: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// Float returns a pointer to v, for optional scene fields.
func Float(v float64) *float64 { return &v }
