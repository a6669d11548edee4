// Package narration turns scene scripts into synthesized speech and keeps that
// speech phase-locked with the preview clock.
//
// The pipeline has three layers:
//   - BuildMarkup converts a script into one markup string per spoken part,
//     inserting pause markers. Markup is synthesis input only and is never shown
//     to the user.
//   - Cache owns completed segments and the in-flight registry. Requests with the
//     same cache key (voice::markup) share one synthesis call; failures are never
//     cached; invalidation is keyed by scene ID and bumps a per-scene generation
//     so results that land after an edit are discarded.
//   - Track lays the segments out on the clock using their real durations,
//     answers "which segment is active at t", and drives a Player.
package narration
