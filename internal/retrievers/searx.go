package retrievers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// searx queries a SearxNG instance (JSON output must be enabled there).
type searx struct {
	query   string
	baseURL string
}

func newSearx(query string, opts Options) (Retriever, error) {
	baseURL := os.Getenv("SEARX_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: SEARX_URL", ErrMissingCredential)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &searx{query: query, baseURL: baseURL}, nil
}

func (s *searx) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", s.query)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searx request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searx HTTP %d", resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("searx response parse failed: %w", err)
	}

	hits := make([]SearchHit, 0, maxResults)
	for _, r := range result.Results {
		hits = append(hits, SearchHit{Title: r.Title, Href: r.URL, Body: r.Content})
		if len(hits) == maxResults {
			break
		}
	}
	return hits, nil
}
