// Package httpapi is the daemon's control surface: a gin router over preview
// sessions, drafts and the export spool, plus a websocket cue stream per
// session.
//
// The browser owns the actual media elements, so a Hub stands in for the
// narration player, music player, renderer and media session of a session and
// forwards each call to connected clients as a JSON cue. Clients send play and
// pause requests back over the same socket; those go through the session's
// playstate bridge so the transport remains the only owner of the play flag.
package httpapi
