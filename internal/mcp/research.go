package mcp

import (
	"context"
	"fmt"

	"researchnerd/internal/llm"
	"researchnerd/internal/logging"
	"researchnerd/internal/prompts"
	"researchnerd/internal/stream"
)

// ToolCaller executes a named tool. Satisfied by ClientManager.
type ToolCaller interface {
	CallTool(ctx context.Context, toolName string, args map[string]any) (*CallResult, error)
}

// ResearchSkill runs the tool-calling research turn: the selected tools are
// bound to the strategic LLM, each requested call is executed and
// normalized, and the model's own analysis is captured as a final result.
type ResearchSkill struct {
	manager   ToolCaller
	strategic llm.Client
	family    prompts.Family
	streamer  *stream.Publisher
}

// NewResearchSkill creates a skill bound to the task's client manager.
func NewResearchSkill(manager ToolCaller, strategic llm.Client, family prompts.Family, streamer *stream.Publisher) *ResearchSkill {
	return &ResearchSkill{manager: manager, strategic: strategic, family: family, streamer: streamer}
}

// ConductResearch drives one tool-bound LLM turn for the query. Errors in
// individual tool calls are logged and skipped; the remaining tools still
// execute.
func (s *ResearchSkill) ConductResearch(ctx context.Context, query string, tools []Tool) ([]Result, error) {
	if len(tools) == 0 {
		logging.Get(logging.CategoryMCP).Warn("no tools available for research")
		return nil, nil
	}

	defs := make([]llm.ToolDef, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDef{
			Name:        t.Schema.Name,
			Description: t.Schema.Description,
			InputSchema: t.Schema.InputSchema,
		})
		names = append(names, t.Schema.Name)
	}

	prompt := s.family.MCPResearchPrompt(query, names)
	resp, err := s.strategic.ChatWithTools(ctx, []llm.Message{llm.User(prompt)}, defs, llm.Options{})
	if err != nil {
		return nil, fmt.Errorf("tool-bound research call failed: %w", err)
	}

	var results []Result
	logging.MCP("LLM issued %d tool calls for %q", len(resp.Calls), query)

	for i, call := range resp.Calls {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		s.streamer.Tool(call.Name, "start", map[string]any{"step": i + 1, "total": len(resp.Calls)})

		callResult, err := s.manager.CallTool(ctx, call.Name, call.Args)
		if err != nil {
			logging.Get(logging.CategoryMCP).Warn("tool %s failed: %v", call.Name, err)
			s.streamer.Tool(call.Name, "complete", map[string]any{"error": err.Error()})
			continue
		}
		if !callResult.Success {
			logging.Get(logging.CategoryMCP).Warn("tool %s returned error: %s", call.Name, callResult.Error)
			s.streamer.Tool(call.Name, "complete", map[string]any{"error": callResult.Error})
			continue
		}

		normalized := NormalizeRaw(call.Name, callResult.Output)
		results = append(results, normalized...)
		logging.MCP("tool %s returned %d normalized results (%d ms)", call.Name, len(normalized), callResult.LatencyMs)
		s.streamer.Tool(call.Name, "complete", map[string]any{"results": len(normalized)})
	}

	// The model's own synthesis is a result too.
	if resp.Content != "" {
		results = append(results, Result{
			Title: fmt.Sprintf("LLM analysis: %s", query),
			Href:  "mcp://llm_analysis",
			Body:  resp.Content,
		})
	}

	logging.MCP("research for %q produced %d results", query, len(results))
	return results, nil
}
