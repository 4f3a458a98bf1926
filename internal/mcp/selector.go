package mcp

import (
	"context"
	"sort"
	"strings"

	"researchnerd/internal/jsonx"
	"researchnerd/internal/llm"
	"researchnerd/internal/logging"
	"researchnerd/internal/prompts"
	"researchnerd/internal/stream"
)

// DefaultMaxTools is how many tools the selector keeps per query.
const DefaultMaxTools = 3

// researchVerbs drives the keyword fallback. Name matches score 3x a
// description match.
var researchVerbs = []string{
	"search", "get", "fetch", "find", "list", "query",
	"lookup", "retrieve", "browse", "view", "show", "describe",
}

// ToolSelector picks the tools most relevant to a query using the strategic
// LLM, degrading to keyword scoring when the model misbehaves.
type ToolSelector struct {
	strategic llm.Client
	family    prompts.Family
	streamer  *stream.Publisher
}

// NewToolSelector creates a selector.
func NewToolSelector(strategic llm.Client, family prompts.Family, streamer *stream.Publisher) *ToolSelector {
	return &ToolSelector{strategic: strategic, family: family, streamer: streamer}
}

type toolSelection struct {
	SelectedTools []struct {
		Index          int     `json:"index"`
		Name           string  `json:"name"`
		RelevanceScore float64 `json:"relevance_score"`
		Reason         string  `json:"reason"`
	} `json:"selected_tools"`
	SelectionReasoning string `json:"selection_reasoning"`
}

// Select returns up to maxTools tools relevant to the query.
func (s *ToolSelector) Select(ctx context.Context, query string, all []Tool, maxTools int) []Tool {
	if len(all) == 0 {
		return nil
	}
	if maxTools <= 0 {
		maxTools = DefaultMaxTools
	}
	if len(all) < maxTools {
		maxTools = len(all)
	}

	logging.MCP("selecting up to %d of %d tools for query %q", maxTools, len(all), query)

	infos := make([]prompts.ToolInfo, len(all))
	for i, t := range all {
		infos[i] = prompts.ToolInfo{Index: i, Name: t.Schema.Name, Description: t.Schema.Description}
	}
	prompt := s.family.MCPToolSelectionPrompt(query, infos, maxTools)

	response, err := s.strategic.Chat(ctx, []llm.Message{llm.User(prompt)}, llm.Options{}.WithTemperature(0))
	if err != nil {
		logging.Get(logging.CategoryMCP).Warn("tool selection LLM call failed: %v", err)
		return s.fallback(all, maxTools)
	}

	var selection toolSelection
	if err := jsonx.Unmarshal(response, &selection); err != nil {
		logging.Get(logging.CategoryMCP).Warn("could not parse tool selection, using fallback: %v", err)
		return s.fallback(all, maxTools)
	}

	var selected []Tool
	for _, pick := range selection.SelectedTools {
		if pick.Index < 0 || pick.Index >= len(all) {
			continue
		}
		selected = append(selected, all[pick.Index])
		logging.MCP("selected tool %q (score %.1f): %s", pick.Name, pick.RelevanceScore, pick.Reason)
		if len(selected) == maxTools {
			break
		}
	}
	if len(selected) == 0 {
		logging.Get(logging.CategoryMCP).Warn("LLM selected no tools, using fallback")
		return s.fallback(all, maxTools)
	}

	if selection.SelectionReasoning != "" {
		logging.MCP("selection reasoning: %s", selection.SelectionReasoning)
	}
	s.streamer.Log("mcp_tool_selection", "selected %d of %d MCP tools", len(selected), len(all))
	return selected
}

// fallback ranks tools by research-verb matches against name (3x) and
// description (1x), keeping positive scorers only.
func (s *ToolSelector) fallback(all []Tool, maxTools int) []Tool {
	type scored struct {
		tool  Tool
		score int
	}
	var ranked []scored
	for _, t := range all {
		name := strings.ToLower(t.Schema.Name)
		desc := strings.ToLower(t.Schema.Description)
		score := 0
		for _, verb := range researchVerbs {
			if strings.Contains(name, verb) {
				score += 3
			}
			if strings.Contains(desc, verb) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{tool: t, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxTools {
		ranked = ranked[:maxTools]
	}

	selected := make([]Tool, 0, len(ranked))
	for i, r := range ranked {
		logging.MCP("fallback selected tool %d: %s (score %d)", i+1, r.tool.Schema.Name, r.score)
		selected = append(selected, r.tool)
	}
	return selected
}
