package conductor

import (
	"context"
	"encoding/json"

	"github.com/samber/lo"

	"researchnerd/internal/jsonx"
	"researchnerd/internal/llm"
	"researchnerd/internal/logging"
	"researchnerd/internal/retrievers"
	"researchnerd/internal/task"
)

// planSubQueries produces the sub-query list for the task. The planner
// always returns at least the original query; total failure of every LLM
// rung degrades to [query] rather than an error.
func (c *Conductor) planSubQueries(ctx context.Context) ([]string, error) {
	c.streamer.Log("planning_research", "Browsing the web to learn more about the task: %s...", c.task.Query)

	subQueries := c.generateSubQueries(ctx)

	// Append the original query unless this is a subtopic report, then
	// de-duplicate by exact string in case the planner already emitted it.
	if c.task.ReportType != task.SubtopicReport {
		subQueries = append(subQueries, c.task.Query)
	}
	subQueries = lo.Uniq(subQueries)

	if len(subQueries) == 0 {
		return nil, ErrPlanFailed
	}
	logging.Conductor("research outline: %v", subQueries)
	return subQueries, nil
}

// generateSubQueries runs the planner LLM ladder.
func (c *Conductor) generateSubQueries(ctx context.Context) []string {
	// MCP-only tasks skip fan-out entirely.
	if c.mcpOnly() {
		logging.Conductor("MCP is the only retriever, skipping sub-query generation")
		return []string{c.task.Query}
	}

	seed := c.initialSearchSeed(ctx)
	prompt := c.family.SearchQueriesPrompt(
		c.task.Query, c.task.ParentQuery, string(c.task.ReportType),
		c.maxIterations(), seed,
	)

	// Strategic LLM first, then a retry with a hard token cap, then the
	// smart LLM.
	response, err := c.strategic.Chat(ctx, []llm.Message{llm.User(prompt)}, llm.Options{
		ReasoningEffort: c.cfg.ReasoningEffort,
	})
	if err != nil {
		logging.Get(logging.CategoryConductor).Warn("strategic planner failed: %v, retrying with max_tokens=%d", err, c.cfg.StrategicTokenLimit)
		response, err = c.strategic.Chat(ctx, []llm.Message{llm.User(prompt)}, llm.Options{
			MaxTokens: c.cfg.StrategicTokenLimit,
		})
	}
	if err != nil {
		logging.Get(logging.CategoryConductor).Warn("strategic retry failed: %v, falling back to the smart model", err)
		response, err = c.smart.Chat(ctx, []llm.Message{llm.User(prompt)}, llm.Options{
			MaxTokens: c.cfg.SmartTokenLimit,
		}.WithTemperature(0.4))
	}
	if err != nil {
		logging.Get(logging.CategoryConductor).Warn("all planner models failed: %v, using the original query", err)
		return []string{c.task.Query}
	}

	queries := jsonx.StringList(response)
	if len(queries) == 0 {
		logging.Get(logging.CategoryConductor).Warn("planner response was not a query list, using the original query")
		return []string{c.task.Query}
	}
	return queries
}

// initialSearchSeed runs the first configured retriever once so the
// planner can see live results. Best effort.
func (c *Conductor) initialSearchSeed(ctx context.Context) string {
	for _, name := range c.cfg.Retrievers {
		if retrievers.IsMCP(name) {
			continue
		}
		factory, err := retrievers.Lookup(name)
		if err != nil {
			continue
		}
		r, err := factory(c.task.Query, retrievers.Options{
			QueryDomains: c.task.QueryDomains,
			Headers:      c.task.Headers,
		})
		if err != nil {
			continue
		}
		hits, err := r.Search(ctx, c.cfg.MaxSearchResultsPerQuery)
		if err != nil || len(hits) == 0 {
			logging.Get(logging.CategoryConductor).Debug("initial seed search via %s yielded nothing: %v", name, err)
			return ""
		}
		data, err := json.Marshal(hits)
		if err != nil {
			return ""
		}
		logging.Conductor("initial search seed: %d results", len(hits))
		return string(data)
	}
	return ""
}

// mcpOnly reports whether MCP is the single enabled retriever.
func (c *Conductor) mcpOnly() bool {
	return len(c.cfg.Retrievers) == 1 && retrievers.IsMCP(c.cfg.Retrievers[0])
}

func (c *Conductor) maxIterations() int {
	if c.cfg.MaxIterations > 0 {
		return c.cfg.MaxIterations
	}
	return 3
}
