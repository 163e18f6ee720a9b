package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedObjectRE = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	fencedArrayRE  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
	bareObjectRE   = regexp.MustCompile(`(?s)\{.*\}`)
	bareArrayRE    = regexp.MustCompile(`(?s)\[.*\]`)
)

// ExtractJSON pulls a JSON object or array out of an LLM response, tolerating
// markdown code fences and surrounding prose. Returns an error when no JSON
// payload can be located.
func ExtractJSON(text string) (string, error) {
	if m := fencedObjectRE.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}
	if m := fencedArrayRE.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}
	if m := bareObjectRE.FindString(text); m != "" {
		return m, nil
	}
	if m := bareArrayRE.FindString(text); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("no JSON found in response: %s", Truncate(text, 200))
}

// Truncate shortens text to max runes, appending an ellipsis when cut.
// Cutting on rune boundaries keeps multi-byte text valid UTF-8.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// FirstSentence returns the text up to and including the first period,
// or the whole text when no period is present.
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "."); idx >= 0 {
		return text[:idx+1]
	}
	return text
}
