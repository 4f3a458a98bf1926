package mcp

import (
	"context"

	"researchnerd/internal/llm"
	"researchnerd/internal/logging"
	"researchnerd/internal/prompts"
	"researchnerd/internal/stream"
)

// Retriever is the two-stage MCP research entry point: enumerate tools,
// select the relevant subset with the strategic LLM, then run tool-bound
// research. Results come back self-contained -- they are never scraped.
type Retriever struct {
	manager  *ClientManager
	selector *ToolSelector
	skill    *ResearchSkill
	streamer *stream.Publisher
	maxTools int
}

// NewRetriever wires the sub-components for one task. The conductor injects
// its config, strategic LLM and streamer here rather than handing the MCP
// layer a back-reference to itself.
func NewRetriever(configs []ServerConfig, strategic llm.Client, family prompts.Family, streamer *stream.Publisher) *Retriever {
	manager := NewClientManager(configs)
	return &Retriever{
		manager:  manager,
		selector: NewToolSelector(strategic, family, streamer),
		skill:    NewResearchSkill(manager, strategic, family, streamer),
		streamer: streamer,
		maxTools: DefaultMaxTools,
	}
}

// Search runs the staged research flow for the query. All failures are
// soft: the retriever returns whatever it gathered and the task continues
// with other sources.
func (r *Retriever) Search(ctx context.Context, query string, maxResults int) []Result {
	if maxResults == 0 {
		return nil
	}

	r.streamer.Log("mcp_retriever", "Stage 1: loading available MCP tools")
	allTools, err := r.manager.AllTools(ctx)
	if err != nil {
		logging.Get(logging.CategoryMCP).Warn("could not load MCP tools: %v", err)
		r.streamer.Error("MCP research error: %v", err)
		return nil
	}
	if len(allTools) == 0 {
		r.streamer.Log("mcp_retriever", "no MCP tools available, skipping MCP research")
		return nil
	}
	r.streamer.Log("mcp_retriever", "loaded %d tools from MCP servers", len(allTools))

	r.streamer.Log("mcp_retriever", "Stage 2: selecting the most relevant tools")
	selected := r.selector.Select(ctx, query, allTools, r.maxTools)
	if len(selected) == 0 {
		r.streamer.Log("mcp_retriever", "no relevant tools selected, skipping MCP research")
		return nil
	}

	r.streamer.Log("mcp_retriever", "Stage 3: researching with the selected tools")
	results, err := r.skill.ConductResearch(ctx, query, selected)
	if err != nil {
		logging.Get(logging.CategoryMCP).Warn("MCP research failed: %v", err)
		r.streamer.Error("MCP research error: %v", err)
		return results
	}

	if maxResults > 0 && len(results) > maxResults {
		logging.MCP("limiting %d MCP results to %d", len(results), maxResults)
		results = results[:maxResults]
	}

	total := 0
	for _, res := range results {
		total += len(res.Body)
	}
	r.streamer.Log("mcp_retriever", "MCP research complete: %d results (%d chars)", len(results), total)
	return results
}

// Close releases the underlying client.
func (r *Retriever) Close() { r.manager.Close() }
