// Package jsonextract recovers a JSON document from text-generation output
// that may wrap it in markdown fences or surrounding prose.
package jsonextract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when no valid JSON object is found in the input
var ErrNoJSONFound = errors.New("no valid JSON object found")

var fenced = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// Object extracts the first complete JSON object from raw.
func Object(raw string) (json.RawMessage, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoJSONFound
	}

	cleaned := stripMarkdown(raw)

	if candidate := matchBraces(cleaned); candidate != "" && json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), nil
	}

	// first { to last }
	first, last := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if first != -1 && last > first {
		if candidate := raw[first : last+1]; json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, fmt.Errorf("%w: input length=%d", ErrNoJSONFound, len(raw))
}

func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if m := fenced.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// matchBraces returns the balanced object starting at the first '{',
// ignoring braces inside strings.
func matchBraces(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
