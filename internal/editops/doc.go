// Package editops implements the validated transforms the authoring UI applies
// to a scene list.
//
// Every operation is pure and total: it never panics and never mutates its
// input. A rejected input returns the original slice unchanged together with
// Change{Applied: false}. Accepted edits return a fresh slice in which only the
// touched scenes are new values; untouched elements keep their pointers, so
// callers can compare element identity to see what moved. Change.SceneIDs lists
// the scenes whose content changed; Change.NarrationIDs narrows that to scenes
// whose script changed or was removed, which is what narration invalidation
// keys on. Trims and source durations never touch narration.
package editops
