// Package transport owns the single preview clock.
//
// Transport is the only writer of the current time and the play/pause flag.
// Other components read its State and call Play, Pause, or Seek; none keep a
// clock of their own. Listeners registered with Subscribe receive an Event for
// every real state change, delivered synchronously after the internal lock is
// released, so listeners may call back into the Transport.
package transport
