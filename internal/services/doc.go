// Package services defines shared utilities consumed by the preview engine and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, scene IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (bad input vs. external outage vs. quota) without string matching.
//
// The speech and upload subpackages hold the HTTP clients for the synthesis
// and object-storage collaborators.
package services
