// Package retrievers maps retriever names to factories producing a uniform
// search interface. Adapters return title/href/body hits without fetching
// page bodies; the scraper owns that.
package retrievers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// SearchHit is one search result.
type SearchHit struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// Options are the shared constructor inputs for every adapter.
type Options struct {
	QueryDomains []string
	Headers      map[string]string
}

// Retriever is the uniform search capability.
type Retriever interface {
	// Search returns up to maxResults hits. maxResults == 0 means the
	// retriever must not issue any request.
	Search(ctx context.Context, maxResults int) ([]SearchHit, error)
}

// Factory builds a retriever for one query.
type Factory func(query string, opts Options) (Retriever, error)

// ErrMissingCredential marks a retriever that cannot run because its API
// key or endpoint is not configured. The readiness probe surfaces these;
// a running task classifies them as soft failures.
var ErrMissingCredential = errors.New("missing retriever credential")

// MCPName is the reserved registry name for the MCP retriever. It never
// produces URLs for scraping, so the conductor handles it outside the web
// fan-out.
const MCPName = "mcp"

// IsMCP reports whether name addresses the MCP retriever.
func IsMCP(name string) bool { return name == MCPName }

var registry = map[string]Factory{
	"duckduckgo":     newDuckDuckGo,
	"tavily":         newTavily,
	"serper":         newSerper,
	"google":         newGoogle,
	"serpapi":        newSerpAPI,
	"searchapi":      newSearchAPI,
	"bing":           newBing,
	"exa":            newExa,
	"searx":          newSearx,
	"pubmed_central": newPubMedCentral,
	"custom":         newCustom,
}

// Lookup resolves a retriever factory by name. MCP is not resolvable here.
func Lookup(name string) (Factory, error) {
	if IsMCP(name) {
		return nil, fmt.Errorf("retriever %q is handled by the MCP subsystem", name)
	}
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("invalid retriever %q, available: %v", name, Names())
	}
	return factory, nil
}

// Names returns all registered retriever names, MCP included, sorted.
func Names() []string {
	names := make([]string, 0, len(registry)+1)
	for name := range registry {
		names = append(names, name)
	}
	names = append(names, MCPName)
	sort.Strings(names)
	return names
}

// CredentialKeys maps each retriever to the environment variables it needs.
// Retrievers with no entry run without credentials.
var CredentialKeys = map[string][]string{
	"tavily":         {"TAVILY_API_KEY"},
	"serper":         {"SERPER_API_KEY"},
	"google":         {"GOOGLE_API_KEY", "GOOGLE_CX_KEY"},
	"serpapi":        {"SERPAPI_API_KEY"},
	"searchapi":      {"SEARCHAPI_API_KEY"},
	"bing":           {"BING_API_KEY"},
	"exa":            {"EXA_API_KEY"},
	"searx":          {"SEARX_URL"},
	"pubmed_central": {"NCBI_API_KEY"},
	"custom":         {"RETRIEVER_ENDPOINT"},
}

// httpClient is shared by the API adapters. Retriever calls are bounded at
// 10-20s; 15 splits the difference.
var httpClient = &http.Client{Timeout: 15 * time.Second}
