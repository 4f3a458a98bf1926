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

// google calls the Google Custom Search API (key + CX pair).
type google struct {
	query   string
	apiKey  string
	cxKey   string
	domains []string
}

func newGoogle(query string, opts Options) (Retriever, error) {
	apiKey := opts.Headers["google_api_key"]
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	cxKey := opts.Headers["google_cx_key"]
	if cxKey == "" {
		cxKey = os.Getenv("GOOGLE_CX_KEY")
	}
	if apiKey == "" || cxKey == "" {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY and GOOGLE_CX_KEY", ErrMissingCredential)
	}
	return &google{query: query, apiKey: apiKey, cxKey: cxKey, domains: opts.QueryDomains}, nil
}

func (g *google) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	searchQuery := g.query
	if len(g.domains) > 0 {
		sites := make([]string, len(g.domains))
		for i, d := range g.domains {
			sites[i] = "site:" + d
		}
		searchQuery = fmt.Sprintf("(%s) %s", strings.Join(sites, " OR "), g.query)
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cxKey)
	params.Set("q", searchQuery)
	params.Set("start", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/customsearch/v1?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("google search HTTP %d", resp.StatusCode)
	}

	var result struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("google search response parse failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.Items))
	for _, r := range result.Items {
		if strings.Contains(r.Link, "youtube.com") {
			continue
		}
		hits = append(hits, SearchHit{Title: r.Title, Href: r.Link, Body: r.Snippet})
		if len(hits) == maxResults {
			break
		}
	}
	return hits, nil
}
