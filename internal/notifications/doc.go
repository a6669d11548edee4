// Package notifications delivers storyreel events via pluggable notifiers.
//
// The default implementation publishes to the ntfy topic configured in
// config.toml and degrades to a no-op when none is set. Exports and daemon
// lifecycle changes are the events worth a push; per-frame playback never is.
package notifications
