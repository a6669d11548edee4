// Package daemon coordinates the long-running storyreeld process.
//
// It wires configuration, the draft store, the export spool and the preview
// session manager behind the HTTP control surface, and holds a flock-based
// lock so only one daemon serves a state directory at a time.
//
// Keep orchestration here: playback behaviour lives in the engine packages
// while the daemon focuses on startup, shutdown and status.
package daemon
