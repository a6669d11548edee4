// Package logs reads the daemon log file for the CLI "logs" command and the
// /api/logs route.
//
// Offsets are byte positions into the file. A negative offset asks for the
// last Limit lines; the returned offset is where the next read should start.
// A file that shrank below the caller's offset is assumed rotated and read
// from the start.
package logs
