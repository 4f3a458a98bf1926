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

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// serpAPI calls serpapi.com's Google engine.
type serpAPI struct {
	query   string
	apiKey  string
	domains []string
}

func newSerpAPI(query string, opts Options) (Retriever, error) {
	apiKey := os.Getenv("SERPAPI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: SERPAPI_API_KEY", ErrMissingCredential)
	}
	return &serpAPI{query: query, apiKey: apiKey, domains: opts.QueryDomains}, nil
}

func (s *serpAPI) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	searchQuery := s.query
	if len(s.domains) > 0 {
		searchQuery += " site:" + strings.Join(s.domains, " OR site:")
	}

	params := url.Values{}
	params.Set("q", searchQuery)
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://serpapi.com/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi HTTP %d", resp.StatusCode)
	}

	var result struct {
		OrganicResults []organicResult `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("serpapi response parse failed: %w", err)
	}
	return filterOrganic(result.OrganicResults, maxResults), nil
}

// filterOrganic drops youtube links and caps the hit count. Shared by the
// Google-engine proxies.
func filterOrganic(results []organicResult, maxResults int) []SearchHit {
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		if strings.Contains(r.Link, "youtube.com") {
			continue
		}
		hits = append(hits, SearchHit{Title: r.Title, Href: r.Link, Body: r.Snippet})
		if len(hits) == maxResults {
			break
		}
	}
	return hits
}
