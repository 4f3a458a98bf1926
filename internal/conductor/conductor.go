// Package conductor schedules the research pipeline for a single task:
// persona selection, sub-query planning, retriever and MCP fan-out,
// scraping, context composition and curation.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"researchnerd/internal/config"
	"researchnerd/internal/cost"
	"researchnerd/internal/llm"
	"researchnerd/internal/loaders"
	"researchnerd/internal/logging"
	"researchnerd/internal/mcp"
	"researchnerd/internal/prompts"
	"researchnerd/internal/retrievers"
	"researchnerd/internal/scraper"
	"researchnerd/internal/stream"
	"researchnerd/internal/task"
)

// Typed pipeline errors.
var (
	// ErrPlanFailed means sub-query generation failed after every fallback.
	ErrPlanFailed = errors.New("sub-query planning failed")
	// ErrNoSources means every retriever and MCP attempt yielded nothing.
	ErrNoSources = errors.New("no sources could be gathered")
	// ErrCancelled marks caller-initiated cancellation.
	ErrCancelled = errors.New("research cancelled")
)

// Scraper is the scraping capability the conductor drives.
type Scraper interface {
	Run(ctx context.Context, urls []string) []scraper.Source
}

// ContextRanker composes bounded context from scraped sources.
type ContextRanker interface {
	SimilarContent(ctx context.Context, query string, sources []scraper.Source) string
	SimilarContentFromVectorStore(ctx context.Context, query string, filter map[string]string) (string, error)
	// IndexSources pushes sources into the vector store when one is
	// configured. Best effort.
	IndexSources(ctx context.Context, originQuery, kind string, sources []scraper.Source)
}

// MCPSearcher is the two-stage MCP research entry point.
type MCPSearcher interface {
	Search(ctx context.Context, query string, maxResults int) []mcp.Result
	Close()
}

// SourceCurator filters sources for quality.
type SourceCurator interface {
	Curate(ctx context.Context, role, query string, sources []scraper.Source) []scraper.Source
}

// Conductor owns one ResearchTask for its lifetime.
type Conductor struct {
	task     *task.ResearchTask
	cfg      config.Config
	family   prompts.Family
	streamer *stream.Publisher
	costs    *cost.Tracker

	smart     llm.Client
	strategic llm.Client

	pool     Scraper
	ranker   ContextRanker
	curator  SourceCurator
	mcp      MCPSearcher // nil when MCP is not configured
	docs     loaders.Loader
	vsFilter map[string]string

	mu          sync.Mutex
	visitedURLs map[string]struct{}
	sources     []scraper.Source
	images      []string

	// mcpCache is written exactly once before sub-query fan-out begins
	// and read-only thereafter.
	mcpCache    []mcp.Result
	mcpCacheSet bool

	context string
}

// Option customizes conductor wiring.
type Option func(*Conductor)

// WithScraper injects the scraper pool.
func WithScraper(s Scraper) Option { return func(c *Conductor) { c.pool = s } }

// WithRanker injects the context manager.
func WithRanker(r ContextRanker) Option { return func(c *Conductor) { c.ranker = r } }

// WithCurator injects the source curator.
func WithCurator(cu SourceCurator) Option { return func(c *Conductor) { c.curator = cu } }

// WithMCP injects the MCP retriever.
func WithMCP(m MCPSearcher) Option { return func(c *Conductor) { c.mcp = m } }

// WithDocumentLoader injects the corpus loader for local, hybrid, azure
// and langchain_docs sources.
func WithDocumentLoader(l loaders.Loader) Option { return func(c *Conductor) { c.docs = l } }

// WithVectorStoreFilter sets the metadata filter for vector-store tasks.
func WithVectorStoreFilter(f map[string]string) Option { return func(c *Conductor) { c.vsFilter = f } }

// WithLLMs injects the chat clients.
func WithLLMs(smart, strategic llm.Client) Option {
	return func(c *Conductor) {
		c.smart = smart
		c.strategic = strategic
	}
}

// New creates a conductor for the task.
func New(t *task.ResearchTask, cfg config.Config, family prompts.Family, streamer *stream.Publisher, costs *cost.Tracker, opts ...Option) *Conductor {
	c := &Conductor{
		task:        t,
		cfg:         cfg,
		family:      family,
		streamer:    streamer,
		costs:       costs,
		visitedURLs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConductResearch runs the pipeline and returns the joined context string.
func (c *Conductor) ConductResearch(ctx context.Context) (string, error) {
	c.mu.Lock()
	c.visitedURLs = make(map[string]struct{})
	c.sources = nil
	c.images = nil
	c.mu.Unlock()

	logging.Conductor("starting research for %q with retrievers %v", c.task.Query, c.cfg.Retrievers)
	c.streamer.Log("starting_research", "Starting the research task for '%s'...", c.task.Query)

	if err := c.choosePersona(ctx); err != nil && ctx.Err() != nil {
		return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	c.streamer.Log("agent_generated", "%s", c.task.Agent)

	var researchContext string
	var err error
	switch {
	case len(c.task.SourceURLs) > 0:
		researchContext, err = c.contextByURLs(ctx)
	case c.task.Source == task.SourceWeb:
		researchContext, err = c.contextByWebSearch(ctx, c.task.Query, nil)
	case c.task.Source == task.SourceLocal, c.task.Source == task.SourceAzure, c.task.Source == task.SourceLangDocs:
		researchContext, err = c.contextFromDocuments(ctx)
	case c.task.Source == task.SourceHybrid:
		researchContext, err = c.contextHybrid(ctx)
	case c.task.Source == task.SourceLangVStore:
		researchContext, err = c.contextByVectorStore(ctx)
	default:
		return "", fmt.Errorf("unsupported report source %q", c.task.Source)
	}
	if err != nil {
		return "", err
	}

	if c.cfg.CurateSources && c.curator != nil {
		researchContext = c.curateContext(ctx, researchContext)
	}

	c.context = researchContext
	c.streamer.Log("research_step_finalized", "Research step finalized. Total research costs: $%.4f", c.costs.Total())

	if strings.TrimSpace(researchContext) == "" {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return "", ErrNoSources
	}
	return researchContext, nil
}

// contextByURLs scrapes the caller-provided URLs directly, optionally
// complemented by a web search pass.
func (c *Conductor) contextByURLs(ctx context.Context) (string, error) {
	newURLs := c.filterVisited(c.task.SourceURLs)
	logging.Conductor("scraping %d provided source urls", len(newURLs))

	sources := c.scrape(ctx, newURLs)
	researchContext := c.ranker.SimilarContent(ctx, c.task.Query, sources)

	if c.task.ComplementSourceURLs {
		webContext, err := c.contextByWebSearch(ctx, c.task.Query, nil)
		if err != nil && !errors.Is(err, ErrNoSources) {
			return "", err
		}
		if webContext != "" {
			if researchContext != "" {
				researchContext += "\n\n"
			}
			researchContext += webContext
		}
	}
	return researchContext, nil
}

// contextFromDocuments loads the corpus and runs the standard pipeline
// with the documents as seed sources.
func (c *Conductor) contextFromDocuments(ctx context.Context) (string, error) {
	seed, err := c.loadDocumentSources(ctx)
	if err != nil {
		return "", err
	}
	return c.contextByWebSearch(ctx, c.task.Query, seed)
}

// contextHybrid computes document and web context separately, then joins
// them documents-first through the prompt family.
func (c *Conductor) contextHybrid(ctx context.Context) (string, error) {
	seed, err := c.loadDocumentSources(ctx)
	if err != nil {
		return "", err
	}
	docsContext, err := c.contextByWebSearch(ctx, c.task.Query, seed)
	if err != nil && !errors.Is(err, ErrNoSources) {
		return "", err
	}
	webContext, err := c.contextByWebSearch(ctx, c.task.Query, nil)
	if err != nil && !errors.Is(err, ErrNoSources) {
		return "", err
	}
	return c.family.JoinLocalWebDocuments(docsContext, webContext), nil
}

// contextByVectorStore answers every sub-query from the vector store.
func (c *Conductor) contextByVectorStore(ctx context.Context) (string, error) {
	subQueries, err := c.planSubQueries(ctx)
	if err != nil {
		return "", err
	}

	results := make([]string, len(subQueries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.subQueryWorkers())
	for i, subQuery := range subQueries {
		g.Go(func() error {
			content, err := c.ranker.SimilarContentFromVectorStore(gctx, subQuery, c.vsFilter)
			if err != nil {
				logging.Get(logging.CategoryConductor).Warn("vector store search failed for %q: %v", subQuery, err)
				return nil
			}
			results[i] = content
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	return joinContexts(results), nil
}

// contextByWebSearch is the main pipeline: MCP pre-pass, sub-query
// planning, bounded fan-out, per-sub-query combination.
func (c *Conductor) contextByWebSearch(ctx context.Context, query string, seedSources []scraper.Source) (string, error) {
	strategy := c.resolveMCPStrategy()
	c.runMCPPrePass(ctx, query, strategy)

	subQueries, err := c.planSubQueries(ctx)
	if err != nil {
		return "", err
	}
	c.streamer.Log("subqueries", "I will conduct my research based on the following queries: %v...", subQueries)

	results := make([]string, len(subQueries))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.subQueryWorkers())

	for i, subQuery := range subQueries {
		g.Go(func() error {
			results[i] = c.processSubQuery(gctx, subQuery, seedSources, strategy)
			c.streamer.Progress(int(done.Add(1)), len(subQueries))
			return nil // sub-query failures never abort the task
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	return joinContexts(results), nil
}

// runMCPPrePass executes the fast-strategy cache fill. The cache is
// written exactly once, before any sub-query runs.
func (c *Conductor) runMCPPrePass(ctx context.Context, query string, strategy task.MCPStrategy) {
	if !c.mcpConfigured() || c.mcpCacheSet {
		return
	}
	switch strategy {
	case task.MCPDisabled:
		logging.Conductor("MCP disabled by strategy, skipping MCP research")
		c.streamer.Log("mcp_disabled", "MCP research disabled by configuration")
	case task.MCPFast:
		c.streamer.Log("mcp_optimization", "MCP fast mode: researching the main query once (performance mode)")
		c.mcpCache = c.mcp.Search(ctx, query, c.cfg.MaxSearchResultsPerQuery)
		c.mcpCacheSet = true
		logging.Conductor("MCP results cached: %d context entries", len(c.mcpCache))
	case task.MCPDeep:
		c.streamer.Log("mcp_comprehensive", "MCP deep mode: will research every sub-query (comprehensive mode)")
	}
}

// processSubQuery gathers MCP and web context for one sub-query and
// combines them.
func (c *Conductor) processSubQuery(ctx context.Context, subQuery string, seedSources []scraper.Source, strategy task.MCPStrategy) string {
	if ctx.Err() != nil {
		return ""
	}
	c.streamer.Log("running_subquery_research", "Running research for '%s'...", subQuery)

	var mcpResults []mcp.Result
	if c.mcpConfigured() {
		switch {
		case strategy == task.MCPDisabled:
		case strategy == task.MCPFast && c.mcpCacheSet:
			mcpResults = append([]mcp.Result(nil), c.mcpCache...)
			c.streamer.Log("mcp_cache_reuse", "Reusing cached MCP results for %s (%d sources)", subQuery, len(mcpResults))
		case strategy == task.MCPDeep:
			mcpResults = c.mcp.Search(ctx, subQuery, c.cfg.MaxSearchResultsPerQuery)
		default:
			// No cache and not deep mode: fall back to running MCP here.
			logging.Get(logging.CategoryConductor).Warn("MCP cache unavailable, researching per sub-query")
			mcpResults = c.mcp.Search(ctx, subQuery, c.cfg.MaxSearchResultsPerQuery)
		}
	}

	sources := seedSources
	if len(sources) == 0 {
		sources = c.scrapeDataByURLs(ctx, subQuery)
	}

	var webContext string
	if len(sources) > 0 {
		webContext = c.ranker.SimilarContent(ctx, subQuery, sources)
	}

	combined := CombineMCPWebContext(mcpResults, webContext)
	if combined == "" {
		c.streamer.Log("subquery_context_not_found", "No content found for '%s'...", subQuery)
	}
	return combined
}

// scrapeDataByURLs fans the sub-query across all non-MCP retrievers,
// de-duplicates the returned URLs against the task's visited set,
// randomizes their order and scrapes them.
func (c *Conductor) scrapeDataByURLs(ctx context.Context, subQuery string) []scraper.Source {
	var urls []string
	for _, name := range c.cfg.Retrievers {
		if retrievers.IsMCP(name) {
			continue // MCP results are self-contained, never scraped
		}
		factory, err := retrievers.Lookup(name)
		if err != nil {
			logging.Get(logging.CategoryRetriever).Warn("%v", err)
			continue
		}
		r, err := factory(subQuery, retrievers.Options{
			QueryDomains: c.task.QueryDomains,
			Headers:      c.task.Headers,
		})
		if err != nil {
			logging.Get(logging.CategoryRetriever).Warn("retriever %s unavailable: %v", name, err)
			continue
		}

		hits, err := r.Search(ctx, c.cfg.MaxSearchResultsPerQuery)
		if err != nil {
			logging.Get(logging.CategoryRetriever).Warn("search with %s failed: %v", name, err)
			c.streamer.Log("retriever_error", "Retriever %s failed, continuing with other sources", name)
			continue
		}
		for _, hit := range hits {
			if hit.Href != "" {
				urls = append(urls, hit.Href)
			}
		}
	}

	newURLs := c.filterVisited(urls)
	rand.Shuffle(len(newURLs), func(i, j int) { newURLs[i], newURLs[j] = newURLs[j], newURLs[i] })

	return c.scrape(ctx, newURLs)
}

// scrape runs the pool and records sources and images on the task.
func (c *Conductor) scrape(ctx context.Context, urls []string) []scraper.Source {
	if len(urls) == 0 {
		return nil
	}
	sources := c.pool.Run(ctx, urls)

	var images []string
	for _, src := range sources {
		images = append(images, src.ImageURLs...)
	}

	c.mu.Lock()
	c.sources = append(c.sources, sources...)
	c.images = append(c.images, images...)
	c.mu.Unlock()

	c.streamer.Images(images)
	return sources
}

// filterVisited returns the URLs not yet seen by this task, inserting them
// into the visited set as it goes.
func (c *Conductor) filterVisited(urls []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fresh []string
	for _, u := range urls {
		if _, seen := c.visitedURLs[u]; seen {
			continue
		}
		c.visitedURLs[u] = struct{}{}
		fresh = append(fresh, u)
	}
	return fresh
}

// loadDocumentSources loads the configured corpus as seed sources.
func (c *Conductor) loadDocumentSources(ctx context.Context) ([]scraper.Source, error) {
	loader := c.docs
	if loader == nil && c.cfg.DocPath != "" {
		loader = loaders.NewDirLoader(c.cfg.DocPath)
	}
	if loader == nil {
		return nil, fmt.Errorf("report source %q requires a document corpus (set DOC_PATH)", c.task.Source)
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	sources := make([]scraper.Source, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, scraper.Source{
			URL:     doc.Path,
			Title:   doc.Path,
			RawText: doc.Content,
			Status:  scraper.StatusSuccess,
		})
	}
	c.ranker.IndexSources(ctx, c.task.Query, "local", sources)
	return sources, nil
}

// curateContext runs the curation pass over the gathered sources and
// rebuilds the context from the survivors.
func (c *Conductor) curateContext(ctx context.Context, current string) string {
	c.mu.Lock()
	sources := append([]scraper.Source(nil), c.sources...)
	c.mu.Unlock()
	if len(sources) == 0 {
		return current
	}

	c.streamer.Log("research_plan", "Evaluating and curating sources by credibility and relevance...")
	curated := c.curator.Curate(ctx, c.task.Role, c.task.Query, sources)
	rebuilt := c.ranker.SimilarContent(ctx, c.task.Query, curated)
	if rebuilt == "" {
		return current
	}
	return rebuilt
}

func (c *Conductor) resolveMCPStrategy() task.MCPStrategy {
	return task.ResolveMCPStrategy(c.task.MCPStrategy, c.cfg.MCPStrategy)
}

// mcpConfigured reports whether MCP research can run for this task.
func (c *Conductor) mcpConfigured() bool {
	return c.mcp != nil && c.cfg.HasRetriever(retrievers.MCPName)
}

func (c *Conductor) subQueryWorkers() int {
	if c.cfg.MaxSubQueryWorkers > 0 {
		return c.cfg.MaxSubQueryWorkers
	}
	return 5
}

// joinContexts drops empty sub-query contexts and joins the rest with a
// blank line, ordered by sub-query index.
func joinContexts(results []string) string {
	kept := lo.Filter(results, func(s string, _ int) bool { return strings.TrimSpace(s) != "" })
	return strings.Join(kept, "\n\n")
}

// Accessors used by the caller after research completes.

// Context returns the last composed research context.
func (c *Conductor) Context() string { return c.context }

// VisitedURLs returns the de-duplicated set of URLs this task touched.
func (c *Conductor) VisitedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Keys(c.visitedURLs)
}

// Sources returns the scraped source records.
func (c *Conductor) Sources() []scraper.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]scraper.Source(nil), c.sources...)
}

// Images returns the collected research image URLs, capped at topK when
// topK > 0.
func (c *Conductor) Images(topK int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	images := append([]string(nil), c.images...)
	if topK > 0 && len(images) > topK {
		images = images[:topK]
	}
	return images
}

// Costs returns the accumulated research cost in dollars.
func (c *Conductor) Costs() float64 { return c.costs.Total() }
