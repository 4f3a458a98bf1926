package retrievers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// exa calls the Exa neural search API.
type exa struct {
	query   string
	apiKey  string
	domains []string
}

func newExa(query string, opts Options) (Retriever, error) {
	apiKey := os.Getenv("EXA_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: EXA_API_KEY", ErrMissingCredential)
	}
	return &exa{query: query, apiKey: apiKey, domains: opts.QueryDomains}, nil
}

func (e *exa) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	payload := map[string]any{
		"query":       e.query,
		"type":        "neural",
		"numResults":  maxResults,
		"contents":    map[string]any{"text": true},
	}
	if len(e.domains) > 0 {
		payload["includeDomains"] = e.domains
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.exa.ai/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exa HTTP %d", resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			Text  string `json:"text"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("exa response parse failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.Results))
	for _, r := range result.Results {
		hits = append(hits, SearchHit{Title: r.Title, Href: r.URL, Body: r.Text})
	}
	return hits, nil
}
