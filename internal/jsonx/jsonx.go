// Package jsonx implements the tolerant JSON parsing ladder used for every
// LLM-produced artifact: strict parse, then repair, then extraction of the
// first brace-balanced object or array. Typed fallbacks live at the call
// sites; this package only reports failure.
package jsonx

import (
	"encoding/json"
	"strings"
)

// Unmarshal runs the parser ladder against an LLM response. A structurally
// valid JSON input parses identically to encoding/json.
func Unmarshal(response string, v any) error {
	trimmed := strings.TrimSpace(response)

	// Rung 1: strict parse.
	strictErr := json.Unmarshal([]byte(trimmed), v)
	if strictErr == nil {
		return nil
	}

	// Rung 2: repair common LLM damage and retry.
	repaired := Repair(trimmed)
	if repaired != trimmed {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	// Rung 3: first brace-balanced object or array anywhere in the text.
	if extracted := Extract(trimmed); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), v); err == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(Repair(extracted)), v); err == nil {
			return nil
		}
	}

	return strictErr
}

// Repair strips markdown fences and trailing commas. It never invents
// structure; input that needs more surgery than this falls through to
// Extract or to the caller's typed fallback.
func Repair(s string) string {
	s = strings.TrimSpace(s)

	// Markdown code fences, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	s = stripTrailingCommas(s)
	return s
}

// stripTrailingCommas removes commas that directly precede a closing brace
// or bracket, outside of string literals.
func stripTrailingCommas(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			sb.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			sb.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Extract finds the first brace-balanced JSON object or array in the text.
// String literals are respected so braces inside strings do not confuse the
// depth count. Returns "" when nothing balanced is found.
func Extract(response string) string {
	objStart := strings.IndexByte(response, '{')
	arrStart := strings.IndexByte(response, '[')

	start := objStart
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
	}
	if start == -1 {
		return ""
	}

	open := response[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

// StringList parses an LLM response expected to be a JSON array of strings.
// Non-string items are skipped. Returns nil on total failure.
func StringList(response string) []string {
	var direct []string
	if err := Unmarshal(response, &direct); err == nil {
		return direct
	}

	// Tolerate arrays of mixed types.
	var loose []any
	if err := Unmarshal(response, &loose); err != nil {
		return nil
	}
	out := make([]string, 0, len(loose))
	for _, item := range loose {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
