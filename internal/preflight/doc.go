// Package preflight provides readiness checks for the services and paths a
// preview session depends on.
//
// The daemon runs RunAll at startup and logs every failed check as a warning;
// sessions still start, since narration degrades to silence. The CLI "doctor"
// command prints the same results as status lines.
//
// Upload is only checked when enabled.
package preflight
