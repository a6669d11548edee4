// Package timeline holds the scene list a preview is composed from and the pure
// helpers that derive timing from it.
//
// A Timeline is an ordered list of scenes plus global playback parameters. The
// total duration is the sum of scene durations; transitions are rendered inside
// each scene's own window and never extend it. Scene IDs are the durable keys
// used for cache invalidation; OrderIndex is positional and is rewritten
// whenever the list is reordered.
package timeline
