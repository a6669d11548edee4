// Package render defines the contract between the preview engine and the
// canvas that draws scenes.
package render

import "context"

// Options tunes one RenderAt call.
type Options struct {
	// SkipAnimation suppresses entrance animations so continuous playback does
	// not visibly jump.
	SkipAnimation bool
	// ForceSceneIndex pins the drawn scene regardless of the time mapping.
	ForceSceneIndex *int
	// FontKey names the overlay font face (family:weight) that is ready to use.
	FontKey string
}

// Renderer draws the preview at a clock time. Repeated calls with the same time
// and options must be idempotent.
type Renderer interface {
	RenderAt(ctx context.Context, seconds float64, opts Options) error
}

// Func adapts a function to Renderer.
type Func func(ctx context.Context, seconds float64, opts Options) error

// RenderAt calls f.
func (f Func) RenderAt(ctx context.Context, seconds float64, opts Options) error {
	return f(ctx, seconds, opts)
}

// Nop discards every render request.
type Nop struct{}

// RenderAt does nothing.
func (Nop) RenderAt(context.Context, float64, Options) error { return nil }

// Index returns a pointer suitable for Options.ForceSceneIndex.
func Index(i int) *int { return &i }
