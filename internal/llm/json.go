package llm

import (
	"regexp"
	"strings"
)

// fenceTag matches the language tag right after an opening fence
var fenceTag = regexp.MustCompile(`^[A-Za-z0-9_-]*`)

// ExtractJSON pulls the JSON payload out of a model response. Markdown code
// fences and surrounding prose are removed. Returns "" when no object or
// array is found.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		// Drop the language tag only; the payload may start on the fence line
		body = body[len(fenceTag.FindString(body)):]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		text = strings.TrimSpace(body)
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return ""
	}
	return text[start : end+1]
}
