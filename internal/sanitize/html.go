package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy allows basic formatting in user-written prose.
	UGCPolicy = bluemonday.UGCPolicy()
)

// textPasses bounds how many layers of entity encoding Text unwraps.
const textPasses = 4

// Text strips all HTML and surrounding whitespace and returns unescaped
// text. Entity-encoded markup is decoded and stripped again, so
// "&lt;b&gt;" cannot come back out as a tag.
// Use for: event titles, locations, usernames, names.
func Text(input string) string {
	plain := input
	for range textPasses {
		next := html.UnescapeString(StrictPolicy.Sanitize(plain))
		if next == plain {
			return strings.TrimSpace(plain)
		}
		plain = next
	}
	return strings.TrimSpace(StrictPolicy.Sanitize(plain))
}

// HTML keeps safe formatting tags and removes scripts, frames and handlers.
// Character references are decoded unless decoding would change what the
// policy lets through.
// Use for: event descriptions, review comments, profile bios.
func HTML(input string) string {
	clean := UGCPolicy.Sanitize(input)
	plain := html.UnescapeString(clean)
	if plain != clean && UGCPolicy.Sanitize(plain) != clean {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(plain)
}

// TextPtr applies Text to an optional field.
func TextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	out := Text(*input)
	return &out
}

// HTMLPtr applies HTML to an optional field.
func HTMLPtr(input *string) *string {
	if input == nil {
		return nil
	}
	out := HTML(*input)
	return &out
}
