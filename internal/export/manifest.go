package export

import (
	"storyreel/internal/narration"
	"storyreel/internal/notifications"
	"storyreel/internal/timeline"
)

// NarrationRefs lists the resolved clips of a narration layout. Placeholders
// and unsynthesized parts are left out; the encoder renders them as silence.
func NarrationRefs(windows []narration.SegmentWindow) []NarrationRef {
	refs := make([]NarrationRef, 0, len(windows))
	for _, w := range windows {
		if !w.Ready() {
			continue
		}
		refs = append(refs, NarrationRef{
			SceneID:         w.SceneID,
			PartIndex:       w.PartIndex,
			StartSeconds:    w.Window.Start,
			DurationSeconds: w.Window.Len(),
			URL:             w.Segment.URL,
		})
	}
	return refs
}

// NewManifest assembles a job for tl with the given narration layout.
func NewManifest(name, draftID string, tl *timeline.Timeline, windows []narration.SegmentWindow, bgmTemplate string) Manifest {
	return Manifest{
		Name:        name,
		DraftID:     draftID,
		Timeline:    tl.Payload(),
		Narration:   NarrationRefs(windows),
		BGMTemplate: bgmTemplate,
	}
}

// DurationSeconds sums the scene durations of the manifest payload.
func (m Manifest) DurationSeconds() float64 {
	total := 0.0
	for _, s := range m.Timeline.Scenes {
		total += s.Duration
	}
	return total
}

// Announcement is the export-queued notification payload for m.
func (m Manifest) Announcement() notifications.Payload {
	return notifications.Payload{
		"id":              m.ID,
		"name":            m.Name,
		"scenes":          len(m.Timeline.Scenes),
		"durationSeconds": m.DurationSeconds(),
		"narrationClips":  len(m.Narration),
	}
}
