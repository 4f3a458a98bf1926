package retrievers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
)

// searchAPI calls searchapi.io's Google engine.
type searchAPI struct {
	query  string
	apiKey string
}

func newSearchAPI(query string, opts Options) (Retriever, error) {
	apiKey := os.Getenv("SEARCHAPI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: SEARCHAPI_API_KEY", ErrMissingCredential)
	}
	return &searchAPI{query: query, apiKey: apiKey}, nil
}

func (s *searchAPI) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", s.query)
	params.Set("engine", "google")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.searchapi.io/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("X-SearchApi-Source", "researchnerd")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searchapi request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searchapi HTTP %d", resp.StatusCode)
	}

	var result struct {
		OrganicResults []organicResult `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("searchapi response parse failed: %w", err)
	}
	return filterOrganic(result.OrganicResults, maxResults), nil
}
