package editops

import (
	"math"
	"strings"

	"storyreel/internal/timeline"
)

// Change describes the effect of an edit.
type Change struct {
	Applied bool
	// SceneIDs lists scenes whose content changed. Pure reorders leave it empty.
	SceneIDs []string
	// NarrationIDs lists scenes whose spoken script changed or disappeared.
	// Only these need their cached narration dropped.
	NarrationIDs []string
	// Reordered is set when scene positions changed.
	Reordered bool
}

func noop() Change { return Change{} }

// ApplySelectionRange sets the trim window of the scene at index. The index must
// be in range and the window must satisfy 0 <= start < end.
func ApplySelectionRange(scenes []*timeline.Scene, index int, start, end float64) ([]*timeline.Scene, Change) {
	if !validIndex(scenes, index) {
		return scenes, noop()
	}
	if !finite(start) || !finite(end) || start < 0 || !(end > start) {
		return scenes, noop()
	}
	return replaceAt(scenes, index, func(s *timeline.Scene) {
		s.SelectionStartSeconds = timeline.Float(start)
		s.SelectionEndSeconds = timeline.Float(end)
	})
}

// ApplyOriginalVideoDuration records the full length of the scene's source clip.
func ApplyOriginalVideoDuration(scenes []*timeline.Scene, index int, duration float64) ([]*timeline.Scene, Change) {
	if !validIndex(scenes, index) {
		return scenes, noop()
	}
	if !finite(duration) || duration < 0 {
		return scenes, noop()
	}
	return replaceAt(scenes, index, func(s *timeline.Scene) {
		s.SourceClipDurationSeconds = timeline.Float(duration)
	})
}

// ApplyScript replaces the narration script of the scene with the given ID.
// Setting the same script again is reported as a no-op.
func ApplyScript(scenes []*timeline.Scene, sceneID, script string) ([]*timeline.Scene, Change) {
	index := timeline.IndexOf(scenes, sceneID)
	if index < 0 || scenes[index].Script == script {
		return scenes, noop()
	}
	out, change := replaceAt(scenes, index, func(s *timeline.Scene) {
		s.Script = script
	})
	change.NarrationIDs = []string{sceneID}
	return out, change
}

// RemoveScene drops the scene with the given ID and renumbers the survivors.
func RemoveScene(scenes []*timeline.Scene, sceneID string) ([]*timeline.Scene, Change) {
	index := timeline.IndexOf(scenes, strings.TrimSpace(sceneID))
	if index < 0 {
		return scenes, noop()
	}
	out := make([]*timeline.Scene, 0, len(scenes)-1)
	for i, s := range scenes {
		if i == index {
			continue
		}
		if s.OrderIndex != len(out) {
			s = s.Clone()
			s.OrderIndex = len(out)
		}
		out = append(out, s)
	}
	return out, Change{
		Applied:      true,
		SceneIDs:     []string{sceneID},
		NarrationIDs: []string{sceneID},
		Reordered:    index < len(scenes)-1,
	}
}

// ReorderByIndexOrder returns items rearranged so that result[k] = items[order[k]].
// order must be a permutation of [0, len(items)); anything else is rejected.
func ReorderByIndexOrder[T any](items []T, order []int) ([]T, bool) {
	if len(order) != len(items) {
		return items, false
	}
	seen := make([]bool, len(items))
	for _, idx := range order {
		if idx < 0 || idx >= len(items) || seen[idx] {
			return items, false
		}
		seen[idx] = true
	}
	out := make([]T, len(order))
	for k, idx := range order {
		out[k] = items[idx]
	}
	return out, true
}

// ReorderScenes applies ReorderByIndexOrder to a scene list and renumbers
// OrderIndex. Scenes whose position did not change keep their pointer.
func ReorderScenes(scenes []*timeline.Scene, order []int) ([]*timeline.Scene, Change) {
	reordered, ok := ReorderByIndexOrder(scenes, order)
	if !ok {
		return scenes, noop()
	}
	moved := false
	for k, s := range reordered {
		if s.OrderIndex != k {
			cp := s.Clone()
			cp.OrderIndex = k
			reordered[k] = cp
		}
		if order[k] != k {
			moved = true
		}
	}
	return reordered, Change{Applied: true, Reordered: moved}
}

func replaceAt(scenes []*timeline.Scene, index int, mutate func(*timeline.Scene)) ([]*timeline.Scene, Change) {
	out := make([]*timeline.Scene, len(scenes))
	copy(out, scenes)
	updated := scenes[index].Clone()
	mutate(updated)
	out[index] = updated
	return out, Change{Applied: true, SceneIDs: []string{updated.ID}}
}

func validIndex(scenes []*timeline.Scene, index int) bool {
	return index >= 0 && index < len(scenes) && scenes[index] != nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
