package timeline

// Payload is the document handed to the render collaborator and to export jobs.
type Payload struct {
	FPS           int            `json:"fps"`
	Resolution    Resolution     `json:"resolution"`
	PlaybackSpeed float64        `json:"playbackSpeed"`
	Scenes        []PayloadScene `json:"scenes"`
}

// PayloadScene is one scene as the renderer sees it.
type PayloadScene struct {
	SceneID            string      `json:"sceneId"`
	Duration           float64     `json:"duration"`
	Transition         string      `json:"transition"`
	TransitionDuration float64     `json:"transitionDuration"`
	Image              string      `json:"image"`
	ImageFit           string      `json:"imageFit"`
	Text               PayloadText `json:"text"`
	SelectionStart     *float64    `json:"selectionStart,omitempty"`
	SelectionEnd       *float64    `json:"selectionEnd,omitempty"`
}

// PayloadText is the overlay text block of a payload scene.
type PayloadText struct {
	Content    string    `json:"content"`
	Font       string    `json:"font"`
	FontWeight string    `json:"fontWeight"`
	Color      string    `json:"color"`
	Position   string    `json:"position"`
	FontSize   float64   `json:"fontSize"`
	Transform  Transform `json:"transform"`
	Style      string    `json:"style"`
}

// Payload renders the timeline into the renderer document. Transition
// durations are the effective values, already clamped into each scene window.
func (t *Timeline) Payload() Payload {
	out := Payload{
		FPS:           t.FramesPerSecond,
		Resolution:    t.Resolution,
		PlaybackSpeed: t.PlaybackSpeed,
		Scenes:        make([]PayloadScene, 0, len(t.Scenes)),
	}
	for _, s := range t.Scenes {
		if s == nil {
			continue
		}
		fit := s.ImageFit
		if fit == "" {
			fit = "cover"
		}
		weight := s.Overlay.FontWeight
		if weight == "" {
			weight = "400"
		}
		out.Scenes = append(out.Scenes, PayloadScene{
			SceneID:            s.ID,
			Duration:           s.DurationSeconds,
			Transition:         s.TransitionKind,
			TransitionDuration: s.EffectiveTransition(),
			Image:              s.ImageRef,
			ImageFit:           fit,
			SelectionStart:     cloneFloat(s.SelectionStartSeconds),
			SelectionEnd:       cloneFloat(s.SelectionEndSeconds),
			Text: PayloadText{
				Content:    s.Overlay.Text,
				Font:       s.Overlay.Font,
				FontWeight: weight,
				Color:      s.Overlay.Color,
				Position:   s.Overlay.Position,
				FontSize:   s.Overlay.FontSize,
				Transform:  s.Overlay.Transform,
				Style:      s.Overlay.Style,
			},
		})
	}
	return out
}
