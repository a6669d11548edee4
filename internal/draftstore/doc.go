// Package draftstore persists timeline drafts in SQLite so an editing session
// can be resumed or handed to export later.
//
// Drafts are stored whole as JSON next to a few denormalized columns (scene
// count, total duration) used for listings. Schema changes bump the version in
// schema.go; users clear the database to adopt the new schema. Narration audio
// is never stored here.
package draftstore
