package narration

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// PauseMarker is the short pause inserted after sentence-ending punctuation.
	PauseMarker = "[pause]"
	// LongPauseMarker separates consecutive scenes when transition pauses are on.
	LongPauseMarker = "[pause long]"
	// KeySeparator joins voice ID and markup in cache keys.
	KeySeparator = "::"
	// DefaultDelimiter splits one script into several spoken parts.
	DefaultDelimiter = "||"
)

var (
	userPausePattern   = regexp.MustCompile(`(?i)\[\s*pause[^\]]*\]`)
	sentenceEndPattern = regexp.MustCompile(`([.!?]+)\s*(\S)`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// MarkupOptions controls markup generation for one scene.
type MarkupOptions struct {
	Delimiter string
	// SceneTransitionPause appends LongPauseMarker to the final part unless
	// LastScene is set.
	SceneTransitionPause bool
	LastScene            bool
}

// SplitParts splits a script on the delimiter, trimming each part and dropping
// empty ones.
func SplitParts(script, delimiter string) []string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	raw := strings.Split(script, delimiter)
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// BuildMarkup produces the synthesis markup for every spoken part of a script.
// Pause markers typed by the user are removed; a short pause is inserted after
// every run of sentence-ending punctuation that is followed by more text.
func BuildMarkup(script string, opts MarkupOptions) []string {
	parts := SplitParts(script, opts.Delimiter)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if markup := markPart(part); markup != "" {
			out = append(out, markup)
		}
	}
	if len(out) > 0 && opts.SceneTransitionPause && !opts.LastScene {
		out[len(out)-1] += " " + LongPauseMarker
	}
	return out
}

func markPart(part string) string {
	text := norm.NFC.String(part)
	text = userPausePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if text == "" {
		return ""
	}
	return sentenceEndPattern.ReplaceAllString(text, "$1 "+PauseMarker+" $2")
}

// CacheKey builds the identity used for cache lookups and in-flight
// de-duplication.
func CacheKey(voiceID, markup string) string {
	return voiceID + KeySeparator + markup
}
