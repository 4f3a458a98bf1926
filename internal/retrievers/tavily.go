package retrievers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// tavily calls the Tavily search API.
type tavily struct {
	query   string
	apiKey  string
	domains []string
	topic   string
}

func newTavily(query string, opts Options) (Retriever, error) {
	apiKey := opts.Headers["tavily_api_key"]
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: TAVILY_API_KEY", ErrMissingCredential)
	}
	return &tavily{query: query, apiKey: apiKey, domains: opts.QueryDomains, topic: "general"}, nil
}

func (t *tavily) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	payload := map[string]any{
		"query":               t.query,
		"search_depth":        "basic",
		"topic":               t.topic,
		"days":                2,
		"max_results":         maxResults,
		"include_answer":      false,
		"include_raw_content": false,
		"include_images":      false,
		"api_key":             t.apiKey,
	}
	if len(t.domains) > 0 {
		payload["include_domains"] = t.domains
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily HTTP %d", resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("tavily response parse failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.Results))
	for _, r := range result.Results {
		hits = append(hits, SearchHit{Title: r.Title, Href: r.URL, Body: r.Content})
	}
	return hits, nil
}
