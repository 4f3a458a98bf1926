package conductor

import (
	"fmt"
	"strings"

	"researchnerd/internal/mcp"
)

// CombineMCPWebContext merges web and MCP research context for one
// sub-query: web context first, then each MCP entry with a citation line,
// MCP entries separated by a horizontal rule. Returns the empty string iff
// both inputs are empty.
func CombineMCPWebContext(mcpResults []mcp.Result, webContext string) string {
	var parts []string

	if trimmed := strings.TrimSpace(webContext); trimmed != "" {
		parts = append(parts, trimmed)
	}

	var formatted []string
	for _, result := range mcpResults {
		content := strings.TrimSpace(result.Body)
		if content == "" {
			continue
		}
		var citation string
		if result.Href != "" && result.Href != "mcp://llm_analysis" {
			citation = fmt.Sprintf("\n\n*Source: %s (%s)*", result.Title, result.Href)
		} else {
			citation = fmt.Sprintf("\n\n*Source: %s*", result.Title)
		}
		formatted = append(formatted, content+citation)
	}
	if len(formatted) > 0 {
		parts = append(parts, strings.Join(formatted, "\n\n---\n\n"))
	}

	return strings.Join(parts, "\n\n")
}
