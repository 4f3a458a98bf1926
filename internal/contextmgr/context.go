// Package contextmgr ranks candidate sources against a query and composes
// the bounded context string fed to the report LLM.
package contextmgr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"researchnerd/internal/embedding"
	"researchnerd/internal/logging"
	"researchnerd/internal/scraper"
	"researchnerd/internal/vectorstore"
)

// Entry is one ranked context item with provenance.
type Entry struct {
	Content     string `json:"content"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	OriginQuery string `json:"origin_query"`
	Kind        string `json:"source_kind"` // web, mcp, local, vector
}

// render writes the entry in the delimited form the report LLM consumes.
func (e Entry) render() string {
	return fmt.Sprintf("Source: %s\nTitle: %s\nContent: %s", e.URL, e.Title, e.Content)
}

// Config bounds the composed context.
type Config struct {
	// TokenBudget caps the context size, approximated through
	// CharsPerToken unless a tiktoken encoding is known for the model.
	TokenBudget   int
	CharsPerToken int
	// ChunkSize splits long sources before ranking.
	ChunkSize int
	// TopK bounds how many chunks are considered after ranking.
	TopK int
	// Model is used for token estimation only.
	Model string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TokenBudget:   8000,
		CharsPerToken: 4,
		ChunkSize:     2000,
		TopK:          10,
	}
}

// Manager embeds, ranks and bounds candidate content. The embedding engine
// may be nil; ranking then falls back to lexical overlap, as it does when
// the engine errors at runtime.
type Manager struct {
	engine embedding.Engine
	store  *vectorstore.Store
	cfg    Config
}

// NewManager creates a manager. store may be nil.
func NewManager(engine embedding.Engine, store *vectorstore.Store, cfg Config) *Manager {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultConfig().TokenBudget
	}
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = DefaultConfig().CharsPerToken
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	return &Manager{engine: engine, store: store, cfg: cfg}
}

// charBudget converts the token budget into characters.
func (m *Manager) charBudget() int {
	return m.cfg.TokenBudget * m.cfg.CharsPerToken
}

type chunk struct {
	text   string
	source scraper.Source
	score  float64
}

// SimilarContent ranks the scraped sources against the query and returns a
// bounded context string, descending by similarity, one entry per URL.
// Never returns an error to the caller: ranking degradations are logged
// and the lexical fallback keeps the pipeline moving.
func (m *Manager) SimilarContent(ctx context.Context, query string, sources []scraper.Source) string {
	candidates := m.chunkSources(sources)
	if len(candidates) == 0 {
		return ""
	}

	m.scoreChunks(ctx, query, candidates)

	// Descending similarity, stable for ties.
	ordered := make([]*chunk, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].score > ordered[j].score })

	var sb strings.Builder
	seen := make(map[string]bool)
	kept := 0
	usedTokens := 0
	for _, c := range ordered {
		if kept == m.cfg.TopK {
			break
		}
		if seen[c.source.URL] {
			continue
		}

		entry := Entry{Content: c.text, URL: c.source.URL, Title: c.source.Title, OriginQuery: query, Kind: "web"}.render()
		entryTokens := EstimateTokens(m.cfg.Model, entry, m.cfg.CharsPerToken)
		if usedTokens+entryTokens > m.cfg.TokenBudget {
			remaining := (m.cfg.TokenBudget - usedTokens) * m.cfg.CharsPerToken
			if truncated := truncateAtDelimiter(entry, remaining); truncated != "" {
				sb.WriteString(truncated)
				seen[c.source.URL] = true
				kept++
			}
			break
		}

		sb.WriteString(entry)
		sb.WriteString("\n\n")
		usedTokens += entryTokens
		seen[c.source.URL] = true
		kept++
	}

	result := strings.TrimSpace(sb.String())
	logging.Get(logging.CategoryContext).Info("composed context: %d entries, %d chars for %q", kept, len(result), query)
	return result
}

// SimilarContentFromVectorStore answers the query from the configured
// vector store with the provided metadata filter.
func (m *Manager) SimilarContentFromVectorStore(ctx context.Context, query string, filter map[string]string) (string, error) {
	if m.store == nil {
		return "", fmt.Errorf("no vector store configured")
	}
	if m.engine == nil {
		return "", fmt.Errorf("vector store search requires an embedding engine")
	}

	queryVec, err := m.engine.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	matches, err := m.store.Query(ctx, queryVec, m.cfg.TopK, filter)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, match := range matches {
		entry := Entry{Content: match.Content, URL: match.URL, Title: match.Title, OriginQuery: query, Kind: "vector"}.render()
		if sb.Len()+len(entry) > m.charBudget() {
			break
		}
		sb.WriteString(entry)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// IndexSources chunks, embeds and upserts sources into the vector store so
// later queries can answer from it. A no-op without a store and an
// embedding engine; indexing failures are soft.
func (m *Manager) IndexSources(ctx context.Context, originQuery, kind string, sources []scraper.Source) {
	if m.store == nil || m.engine == nil {
		return
	}
	candidates := m.chunkSources(sources)
	if len(candidates) == 0 {
		return
	}

	texts := lo.Map(candidates, func(c *chunk, _ int) string { return c.text })
	vectors, err := m.engine.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(candidates) {
		logging.Get(logging.CategoryStore).Warn("could not embed %d chunks for indexing: %v", len(candidates), err)
		return
	}

	docs := make([]vectorstore.Document, len(candidates))
	for i, c := range candidates {
		docs[i] = vectorstore.Document{
			URL:         c.source.URL,
			Title:       c.source.Title,
			Content:     c.text,
			OriginQuery: originQuery,
			Kind:        kind,
		}
	}
	if err := m.store.Upsert(ctx, docs, vectors); err != nil {
		logging.Get(logging.CategoryStore).Warn("vector store upsert failed: %v", err)
		return
	}
	logging.Get(logging.CategoryStore).Info("indexed %d chunks from %d sources", len(docs), len(sources))
}

// chunkSources splits successful sources into ranking candidates.
func (m *Manager) chunkSources(sources []scraper.Source) []*chunk {
	var candidates []*chunk
	for _, src := range sources {
		if src.Status != scraper.StatusSuccess && src.Status != "" {
			continue
		}
		text := strings.TrimSpace(src.RawText)
		if text == "" {
			continue
		}
		for _, piece := range splitChunks(text, m.cfg.ChunkSize) {
			candidates = append(candidates, &chunk{text: piece, source: src})
		}
	}
	return candidates
}

// scoreChunks fills candidate scores by embedding similarity, degrading to
// lexical overlap when the engine is missing or fails.
func (m *Manager) scoreChunks(ctx context.Context, query string, candidates []*chunk) {
	if m.engine != nil {
		texts := lo.Map(candidates, func(c *chunk, _ int) string { return c.text })
		queryVec, err := m.engine.Embed(ctx, query)
		if err == nil {
			vectors, err2 := m.engine.EmbedBatch(ctx, texts)
			if err2 == nil && len(vectors) == len(candidates) {
				for i, c := range candidates {
					sim, err := embedding.CosineSimilarity(queryVec, vectors[i])
					if err != nil {
						sim = lexicalOverlap(query, c.text)
					}
					c.score = sim
				}
				return
			}
			err = err2
		}
		logging.Get(logging.CategoryContext).Warn("embedding ranking unavailable, using lexical overlap: %v", err)
	}

	for _, c := range candidates {
		c.score = lexicalOverlap(query, c.text)
	}
}

// splitChunks cuts text into pieces of at most size chars, preferring to
// break at whitespace.
func splitChunks(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var chunks []string
	for len(text) > size {
		cut := size
		if idx := strings.LastIndexAny(text[:size], " \n\t"); idx > size/2 {
			cut = idx
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}


// truncateAtDelimiter cuts text to at most limit chars, ending at the last
// newline or space so entries never break mid-word. Returns "" when the
// limit leaves no meaningful room.
func truncateAtDelimiter(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	cut := strings.LastIndexAny(text[:limit], "\n ")
	if cut <= 0 {
		return ""
	}
	return strings.TrimSpace(text[:cut])
}
