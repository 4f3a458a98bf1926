package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize converts a raw tool payload into research results. The rules,
// in order:
//
//  1. A map carrying structured_content or content is an MCP result
//     envelope: prefer structured_content (a results list becomes one
//     entry per item, any other map one entry), else fold content text
//     parts into a single entry.
//  2. A list becomes one entry per item; items already carrying title and
//     content/body are used directly.
//  3. Any other map becomes a single entry with title/href/body fallbacks.
//  4. Anything else is stringified into a single entry.
//
// Normalizing an already-normalized entry yields the same entry.
func Normalize(toolName string, payload any) []Result {
	switch v := payload.(type) {
	case map[string]any:
		if hasEnvelopeKeys(v) {
			return normalizeEnvelope(toolName, v)
		}
		return []Result{singleFromMap(toolName, v, "")}
	case []any:
		results := make([]Result, 0, len(v))
		for i, item := range v {
			results = append(results, normalizeListItem(toolName, item, i))
		}
		return results
	default:
		return []Result{{
			Title: fmt.Sprintf("Result from %s", toolName),
			Href:  "mcp://" + toolName,
			Body:  stringify(payload),
		}}
	}
}

// NormalizeRaw decodes a transport-level JSON payload and normalizes it.
func NormalizeRaw(toolName string, raw json.RawMessage) []Result {
	if len(raw) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Normalize(toolName, string(raw))
	}
	return Normalize(toolName, payload)
}

func hasEnvelopeKeys(m map[string]any) bool {
	if _, ok := m["structured_content"]; ok {
		return true
	}
	if _, ok := m["structuredContent"]; ok {
		return true
	}
	_, ok := m["content"]
	return ok
}

func normalizeEnvelope(toolName string, m map[string]any) []Result {
	structured, ok := m["structured_content"]
	if !ok {
		structured = m["structuredContent"]
	}

	if sm, ok := structured.(map[string]any); ok {
		if items, ok := sm["results"].([]any); ok {
			results := make([]Result, 0, len(items))
			for i, item := range items {
				im, ok := item.(map[string]any)
				if !ok {
					continue
				}
				results = append(results, Result{
					Title: stringField(im, "title", fmt.Sprintf("Result from %s #%d", toolName, i+1)),
					Href:  firstStringField(im, []string{"href", "url"}, fmt.Sprintf("mcp://%s/%d", toolName, i)),
					Body:  firstStringField(im, []string{"body", "content"}, stringify(im)),
				})
			}
			if len(results) > 0 {
				return results
			}
		} else {
			return []Result{singleFromMap(toolName, sm, "")}
		}
	}

	// Fall back to the content field (MCP spec: a list of typed parts).
	body := foldContent(m["content"], m)
	return []Result{{
		Title: fmt.Sprintf("Result from %s", toolName),
		Href:  "mcp://" + toolName,
		Body:  body,
	}}
}

func foldContent(content any, whole map[string]any) string {
	switch v := content.(type) {
	case []any:
		var texts []string
		for _, part := range v {
			if pm, ok := part.(map[string]any); ok {
				if text, ok := pm["text"].(string); ok {
					texts = append(texts, text)
					continue
				}
				texts = append(texts, stringify(pm))
				continue
			}
			texts = append(texts, stringify(part))
		}
		nonEmpty := texts[:0]
		for _, t := range texts {
			if t != "" {
				nonEmpty = append(nonEmpty, t)
			}
		}
		return strings.Join(nonEmpty, "\n\n")
	case string:
		return v
	default:
		return stringify(whole)
	}
}

func normalizeListItem(toolName string, item any, index int) Result {
	if im, ok := item.(map[string]any); ok {
		_, hasTitle := im["title"]
		_, hasContent := im["content"]
		_, hasBody := im["body"]
		if hasTitle && (hasContent || hasBody) {
			return Result{
				Title: stringField(im, "title", ""),
				Href:  firstStringField(im, []string{"href", "url"}, fmt.Sprintf("mcp://%s/%d", toolName, index)),
				Body:  firstStringField(im, []string{"body", "content"}, stringify(im)),
			}
		}
	}
	return Result{
		Title: fmt.Sprintf("Result from %s", toolName),
		Href:  fmt.Sprintf("mcp://%s/%d", toolName, index),
		Body:  stringify(item),
	}
}

func singleFromMap(toolName string, m map[string]any, _ string) Result {
	return Result{
		Title: stringField(m, "title", fmt.Sprintf("Result from %s", toolName)),
		Href:  firstStringField(m, []string{"href", "url"}, "mcp://"+toolName),
		Body:  firstStringField(m, []string{"body", "content"}, stringify(m)),
	}
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func firstStringField(m map[string]any, keys []string, fallback string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
