package contextmgr

import (
	"context"
	"encoding/json"

	"researchnerd/internal/jsonx"
	"researchnerd/internal/llm"
	"researchnerd/internal/logging"
	"researchnerd/internal/prompts"
	"researchnerd/internal/scraper"
)

// Curator asks the smart LLM to keep the sources that best cover the
// query, preserving their content verbatim. A best-effort quality gate:
// any failure returns the original set unchanged.
type Curator struct {
	smart      llm.Client
	family     prompts.Family
	maxResults int
}

// NewCurator creates a curator. maxResults caps the curated set.
func NewCurator(smart llm.Client, family prompts.Family, maxResults int) *Curator {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Curator{smart: smart, family: family, maxResults: maxResults}
}

// curatedSource mirrors the JSON shape sent to and expected from the LLM.
type curatedSource struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	RawContent string `json:"raw_content"`
}

// Curate filters and reorders sources. role seeds the system message.
func (c *Curator) Curate(ctx context.Context, role, query string, sources []scraper.Source) []scraper.Source {
	if len(sources) == 0 {
		return sources
	}

	input := make([]curatedSource, 0, len(sources))
	byURL := make(map[string]scraper.Source, len(sources))
	for _, src := range sources {
		input = append(input, curatedSource{URL: src.URL, Title: src.Title, RawContent: src.RawText})
		byURL[src.URL] = src
	}
	sourcesJSON, err := json.Marshal(input)
	if err != nil {
		return sources
	}

	response, err := c.smart.Chat(ctx, []llm.Message{
		llm.System(role),
		llm.User(c.family.CurateSourcesPrompt(query, string(sourcesJSON), c.maxResults)),
	}, llm.Options{MaxTokens: 8000}.WithTemperature(0.2))
	if err != nil {
		logging.Get(logging.CategoryContext).Warn("source curation LLM call failed, keeping original set: %v", err)
		return sources
	}

	var curated []curatedSource
	if err := jsonx.Unmarshal(response, &curated); err != nil || len(curated) == 0 {
		logging.Get(logging.CategoryContext).Warn("could not parse curated sources, keeping original set")
		return sources
	}

	out := make([]scraper.Source, 0, len(curated))
	for _, cs := range curated {
		if original, ok := byURL[cs.URL]; ok {
			out = append(out, original) // content is preserved, not rewritten
		}
		if len(out) == c.maxResults {
			break
		}
	}
	if len(out) == 0 {
		return sources
	}
	logging.Get(logging.CategoryContext).Info("curated %d of %d sources", len(out), len(sources))
	return out
}
