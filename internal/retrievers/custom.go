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

// custom calls a user-supplied GET endpoint. Extra query parameters come
// from RETRIEVER_ARG_* environment variables.
type custom struct {
	query    string
	endpoint string
	params   map[string]string
}

func newCustom(query string, opts Options) (Retriever, error) {
	endpoint := os.Getenv("RETRIEVER_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: RETRIEVER_ENDPOINT", ErrMissingCredential)
	}

	params := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if arg, ok := strings.CutPrefix(key, "RETRIEVER_ARG_"); ok {
			params[strings.ToLower(arg)] = value
		}
	}
	return &custom{query: query, endpoint: endpoint, params: params}, nil
}

func (c *custom) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	params := url.Values{}
	for k, v := range c.params {
		params.Set(k, v)
	}
	params.Set("query", c.query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custom retriever request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custom retriever HTTP %d", resp.StatusCode)
	}

	// The endpoint returns [{"url": ..., "raw_content": ...}].
	var result []struct {
		URL        string `json:"url"`
		RawContent string `json:"raw_content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("custom retriever response parse failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(result))
	for _, r := range result {
		hits = append(hits, SearchHit{Title: r.URL, Href: r.URL, Body: r.RawContent})
		if len(hits) == maxResults {
			break
		}
	}
	return hits, nil
}
