package retrievers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"duckduckgo", "tavily", "serper", "google", "serpapi", "searchapi", "bing", "exa", "searx", "pubmed_central", "custom"} {
		_, err := Lookup(name)
		assert.NoError(t, err, name)
	}

	_, err := Lookup("mcp")
	assert.Error(t, err, "mcp is resolved by the MCP subsystem, not the registry")

	_, err = Lookup("altavista")
	assert.Error(t, err)
}

func TestNames_IncludesMCP(t *testing.T) {
	assert.Contains(t, Names(), "mcp")
}

func TestMissingCredential(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	_, err := newTavily("q", Options{})
	assert.ErrorIs(t, err, ErrMissingCredential)

	t.Setenv("SERPER_API_KEY", "")
	_, err = newSerper("q", Options{})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestTavily_HeaderKeyOverridesEnv(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	r, err := newTavily("q", Options{Headers: map[string]string{"tavily_api_key": "from-header"}})
	require.NoError(t, err)
	assert.Equal(t, "from-header", r.(*tavily).apiKey)
}

func TestZeroMaxResultsSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	t.Setenv("RETRIEVER_ENDPOINT", srv.URL)
	r, err := newCustom("q", Options{})
	require.NoError(t, err)

	hits, err := r.Search(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, hits)
	assert.False(t, called, "retriever must not be invoked for max_results == 0")
}

func TestCustomRetriever_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("query"))
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"url": "http://example.com/page1", "raw_content": "content one"},
			{"url": "http://example.com/page2", "raw_content": "content two"},
		})
	}))
	defer srv.Close()

	t.Setenv("RETRIEVER_ENDPOINT", srv.URL)
	r, err := newCustom("golang", Options{})
	require.NoError(t, err)

	hits, err := r.Search(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "http://example.com/page1", hits[0].Href)
	assert.Equal(t, "content one", hits[0].Body)
}

const ddgSample = `
<html><body>
<div class="result results_links results_links_deep web-result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">Go Documentation</a>
  <a class="result__snippet" href="https://go.dev/doc/">The Go programming language docs.</a>
</div>
<div class="result results_links results_links_deep web-result">
  <a class="result__a" href="https://golang.org/">The Go Project</a>
  <a class="result__snippet" href="https://golang.org/">Build simple, secure software.</a>
</div>
</body></html>`

func TestParseDuckDuckGoResults(t *testing.T) {
	hits, err := parseDuckDuckGoResults(ddgSample, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "Go Documentation", hits[0].Title)
	assert.Equal(t, "https://go.dev/doc/", hits[0].Href, "redirect links must be unwrapped")
	assert.Contains(t, hits[0].Body, "programming language")
	assert.Equal(t, "https://golang.org/", hits[1].Href)
}

func TestParseDuckDuckGoResults_MaxResults(t *testing.T) {
	hits, err := parseDuckDuckGoResults(ddgSample, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestParsePubMedArticle(t *testing.T) {
	articleXML := `<pmc-articleset><article>
	<front><article-meta><title-group><article-title>CRISPR advances</article-title></title-group>
	<abstract><p>Gene editing progress.</p><p>Clinical outlook.</p></abstract></article-meta></front>
	</article></pmc-articleset>`

	title, abstract, err := parsePubMedArticle(strings.NewReader(articleXML))
	require.NoError(t, err)
	assert.Equal(t, "CRISPR advances", title)
	assert.Contains(t, abstract, "Gene editing progress.")
	assert.Contains(t, abstract, "Clinical outlook.")
}

func TestSerperBuildsDomainFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Contains(t, body["q"], "site:go.dev")
		_ = json.NewEncoder(w).Encode(map[string]any{"organic": []map[string]string{
			{"title": "t", "link": "https://go.dev/x", "snippet": "s"},
		}})
	}))
	defer srv.Close()

	// Point the shared client at the fake server via a request rewrite.
	old := httpClient.Transport
	httpClient.Transport = rewriteHost(srv.URL)
	defer func() { httpClient.Transport = old }()

	t.Setenv("SERPER_API_KEY", "k")
	r, err := newSerper("query", Options{QueryDomains: []string{"go.dev"}})
	require.NoError(t, err)

	hits, err := r.Search(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://go.dev/x", hits[0].Href)
}

// rewriteHost redirects every request to the test server.
type rewriteHost string

func (h rewriteHost) RoundTrip(req *http.Request) (*http.Response, error) {
	target := strings.TrimPrefix(string(h), "http://")
	req.URL.Scheme = "http"
	req.URL.Host = target
	return http.DefaultTransport.RoundTrip(req)
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
