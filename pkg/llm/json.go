package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// thinkBlockPattern matches <think>...</think> reasoning blocks some models emit.
var thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// fencePattern matches Markdown code fence markers with an optional language tag.
var fencePattern = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_-]*[ \t]*$")

// ErrNoJSONObject is returned when a response holds no parseable JSON object.
var ErrNoJSONObject = errors.New("no valid JSON object found in response")

// StripFences removes <think> blocks and Markdown code fence markers,
// leaving the fenced content in place.
func StripFences(response string) string {
	cleaned := thinkBlockPattern.ReplaceAllString(response, "")
	cleaned = fencePattern.ReplaceAllString(cleaned, "")
	// Single-line fences such as ```json {"a":1}```
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// ExtractJSONObject returns the first balanced, valid JSON object in a model
// response after stripping reasoning blocks and code fences.
func ExtractJSONObject(response string) (string, error) {
	cleaned := StripFences(response)

	for offset := 0; offset < len(cleaned); {
		idx := strings.IndexByte(cleaned[offset:], '{')
		if idx < 0 {
			break
		}
		start := offset + idx
		if candidate, ok := balancedObject(cleaned[start:]); ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		offset = start + 1
	}

	return "", ErrNoJSONObject
}

// balancedObject returns the prefix of s that closes the object opened at s[0].
// Braces inside string literals are ignored.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}

	return "", false
}
