// Package preview wires the playback engine for one editing session.
//
// A Session owns exactly one transport clock and builds every other component
// around it: the narration track and its cache, the scene locator, the music
// controller, the seek orchestrator and the media-session bridge. Transport
// events drive the per-frame work (locate the scene, keep narration in step,
// make sure the overlay font is ready, render). Edits go through editops and
// trigger cache invalidation directly from the returned Change, so nothing
// has to infer what changed from derived state.
//
// Manager keeps the set of live sessions for the daemon and runs each
// session's frame loop.
package preview
