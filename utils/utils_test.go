package utils

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractJSONFenced(t *testing.T) {
	raw := "Here you go:\n```json\n{\"name\": \"Apple\"}\n```\nHope that helps."
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("extracted payload not valid JSON: %v", err)
	}
	if out["name"] != "Apple" {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestExtractJSONFencedArray(t *testing.T) {
	raw := "```\n[{\"name\": \"Apple\", \"type\": \"Organization\"}]\n```"
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var out []map[string]string
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("extracted payload not valid JSON: %v", err)
	}
	if len(out) != 1 || out[0]["type"] != "Organization" {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestExtractJSONBare(t *testing.T) {
	raw := "The entities are [\"a\", \"b\"] as requested."
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `["a", "b"]` {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestExtractJSONNone(t *testing.T) {
	if _, err := ExtractJSON("no structured data here"); err == nil {
		t.Fatalf("expected error for prose-only response")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected: %s", got)
	}
	if got := Truncate("0123456789", 8); got != "01234..." {
		t.Fatalf("unexpected: %s", got)
	}
	if len(Truncate("0123456789", 8)) != 8 {
		t.Fatalf("truncated length exceeds max")
	}
}

func TestTruncateKeepsMultiByteRunesIntact(t *testing.T) {
	text := strings.Repeat("é", 10)
	got := Truncate(text, 8)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("é", 5)+"..." {
		t.Fatalf("unexpected: %q", got)
	}
	if got := Truncate("日本語", 2); got != "日本" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestFirstSentence(t *testing.T) {
	if got := FirstSentence("One. Two. Three."); got != "One." {
		t.Fatalf("unexpected: %s", got)
	}
	if got := FirstSentence("no terminator"); got != "no terminator" {
		t.Fatalf("unexpected: %s", got)
	}
}
