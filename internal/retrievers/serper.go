package retrievers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// serper calls the Google Serper API with optional region, language and
// time-range filters from the environment.
type serper struct {
	query     string
	apiKey    string
	domains   []string
	country   string
	language  string
	timeRange string
}

func newSerper(query string, opts Options) (Retriever, error) {
	apiKey := os.Getenv("SERPER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: SERPER_API_KEY", ErrMissingCredential)
	}
	return &serper{
		query:     query,
		apiKey:    apiKey,
		domains:   opts.QueryDomains,
		country:   os.Getenv("SERPER_REGION"),
		language:  os.Getenv("SERPER_LANGUAGE"),
		timeRange: os.Getenv("SERPER_TIME_RANGE"),
	}, nil
}

func (s *serper) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	query := s.query
	if len(s.domains) > 0 {
		query += " site:" + strings.Join(s.domains, " OR site:")
	}

	params := map[string]any{"q": query, "num": maxResults}
	if s.country != "" {
		params["gl"] = s.country
	}
	if s.language != "" {
		params["hl"] = s.language
	}
	if s.timeRange != "" {
		params["tbs"] = s.timeRange
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://google.serper.dev/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper HTTP %d", resp.StatusCode)
	}

	var result struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("serper response parse failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.Organic))
	for _, r := range result.Organic {
		hits = append(hits, SearchHit{Title: r.Title, Href: r.Link, Body: r.Snippet})
	}
	return hits, nil
}
