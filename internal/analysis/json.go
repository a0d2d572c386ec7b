package analysis

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// cleanJSON strips markdown fences and surrounding prose from a model
// response so the embedded JSON object can be unmarshalled. Models
// occasionally wrap output in ```json fences or add commentary despite
// instructions.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// truncateBytes cuts s to at most n bytes, backing up so a multi-byte
// rune is never split. Prompt and log payloads must stay valid UTF-8.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// brandListKeys are the object keys accepted when the model wraps the
// entity array instead of returning it bare.
var brandListKeys = []string{"entities", "brands", "names", "companies"}

// parseBrandList extracts a string array from a model response. Accepts
// either a bare JSON array or a JSON object holding the array under a
// recognized key. Returns nil when no parse succeeds; the caller treats
// that as an empty brand list, never as a failure.
func parseBrandList(text string) []string {
	cleaned := cleanJSON(text)

	// Object shape: the array must sit under a recognized key. Checked
	// first so an array nested under some other key is not mistaken for
	// the answer.
	if strings.HasPrefix(cleaned, "{") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
			return nil
		}
		for _, key := range brandListKeys {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var arr []string
			if err := json.Unmarshal(raw, &arr); err == nil {
				return arr
			}
		}
		return nil
	}

	// Bare array, possibly fenced or wrapped in prose.
	trimmed := strings.TrimSpace(text)
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			var arr []string
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &arr); err == nil {
				return arr
			}
		}
	}
	return nil
}
