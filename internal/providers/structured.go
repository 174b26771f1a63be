package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes a wrapping markdown code fence from a model reply.
// Replies without a fence pass through trimmed.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// DecodeObject parses a model reply as a JSON object, tolerating a markdown
// fence around it. Arrays, scalars and malformed JSON are errors.
func DecodeObject(content string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(StripFences(content)), &m); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return m, nil
}
