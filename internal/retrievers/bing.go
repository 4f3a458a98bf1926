package retrievers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// bing calls the Bing Web Search API.
type bing struct {
	query  string
	apiKey string
}

func newBing(query string, opts Options) (Retriever, error) {
	apiKey := os.Getenv("BING_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: BING_API_KEY", ErrMissingCredential)
	}
	return &bing{query: query, apiKey: apiKey}, nil
}

func (b *bing) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("responseFilter", "Webpages")
	params.Set("q", b.query)
	params.Set("count", strconv.Itoa(maxResults))
	params.Set("setLang", "en-GB")
	params.Set("textDecorations", "false")
	params.Set("textFormat", "HTML")
	params.Set("safeSearch", "Strict")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.bing.microsoft.com/v7.0/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bing HTTP %d", resp.StatusCode)
	}

	var result struct {
		WebPages struct {
			Value []struct {
				Name    string `json:"name"`
				URL     string `json:"url"`
				Snippet string `json:"snippet"`
			} `json:"value"`
		} `json:"webPages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("bing response parse failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.WebPages.Value))
	for _, r := range result.WebPages.Value {
		if strings.Contains(r.URL, "youtube.com") {
			continue
		}
		hits = append(hits, SearchHit{Title: r.Name, Href: r.URL, Body: r.Snippet})
	}
	return hits, nil
}
