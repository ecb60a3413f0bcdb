// Package normalize trims model output down to the JSON array it was asked
// to produce.
package normalize

import "strings"

// CommentaryMarker is the heading after which models tend to append prose.
const CommentaryMarker = "### Commentary"

// ExtractJSONArray drops everything from CommentaryMarker on, then returns
// the text from the first '[' to the last ']' inclusive. Input without such a
// span is returned unchanged, marker included. The result is not validated
// as JSON.
func ExtractJSONArray(raw string) string {
	text := raw
	if i := strings.Index(text, CommentaryMarker); i >= 0 {
		text = text[:i]
	}
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < start {
		return raw
	}
	return text[start : end+1]
}
