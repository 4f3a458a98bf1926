package conductor

import (
	"fmt"
	"time"

	"researchnerd/internal/config"
	"researchnerd/internal/contextmgr"
	"researchnerd/internal/cost"
	"researchnerd/internal/embedding"
	"researchnerd/internal/llm"
	"researchnerd/internal/loaders"
	"researchnerd/internal/logging"
	"researchnerd/internal/mcp"
	"researchnerd/internal/prompts"
	"researchnerd/internal/report"
	"researchnerd/internal/retrievers"
	"researchnerd/internal/scraper"
	"researchnerd/internal/stream"
	"researchnerd/internal/task"
	"researchnerd/internal/vectorstore"
)

// Engine bundles a fully-wired conductor with its report generator and
// cost tracker for one task.
type Engine struct {
	Conductor *Conductor
	Generator *report.Generator
	Costs     *cost.Tracker
	Streamer  *stream.Publisher

	mcpRetriever *mcp.Retriever
}

// AssembleOption customizes engine assembly.
type AssembleOption func(*assembly)

type assembly struct {
	store    *vectorstore.Store
	vsFilter map[string]string
	docs     loaders.Loader
}

// WithVectorStore supplies an external vector store (langchain_vstore
// tasks, or document sources that should be indexed).
func WithVectorStore(store *vectorstore.Store, filter map[string]string) AssembleOption {
	return func(a *assembly) {
		a.store = store
		a.vsFilter = filter
	}
}

// WithLoader supplies the document corpus loader (azure blobs, online
// documents) in place of the DOC_PATH directory loader.
func WithLoader(l loaders.Loader) AssembleOption {
	return func(a *assembly) { a.docs = l }
}

// Assemble wires the production components for a task. The streamer may
// already have a subscriber attached.
func Assemble(t *task.ResearchTask, cfg config.Config, streamer *stream.Publisher, assembleOpts ...AssembleOption) (*Engine, error) {
	var asm assembly
	for _, opt := range assembleOpts {
		opt(&asm)
	}
	family := prompts.Select(modelOf(cfg.SmartLLM))

	costs := cost.NewTracker(func(s cost.Snapshot) {
		streamer.Cost(s.TotalTokens, s.PromptTokens, s.CompletionTokens, s.TotalCost)
	})
	onUsage := func(promptTokens, completionTokens int, model string) {
		costs.OnUsage(cost.Usage{PromptTokens: promptTokens, CompletionTokens: completionTokens, Model: model})
	}

	smart, err := llm.New(cfg.SmartLLM, onUsage)
	if err != nil {
		return nil, fmt.Errorf("smart llm: %w", err)
	}
	strategic, err := llm.New(cfg.StrategicLLM, onUsage)
	if err != nil {
		return nil, fmt.Errorf("strategic llm: %w", err)
	}

	pool := scraper.NewPool(scraper.Config{
		Backend:   cfg.Scraper,
		UserAgent: cfg.UserAgent,
		Timeout:   30 * time.Second,
	})

	// Embedding is optional: without it the context manager ranks
	// lexically.
	var engine embedding.Engine
	if provider, model := cfg.EmbeddingProvider(); provider != "" {
		engine, err = embedding.NewEngine(embedding.Config{Provider: provider, Model: model})
		if err != nil {
			logging.Get(logging.CategoryBoot).Warn("embedding engine unavailable, ranking falls back to lexical overlap: %v", err)
			engine = nil
		}
	}

	ranker := contextmgr.NewManager(engine, asm.store, contextmgr.Config{
		TokenBudget:   cfg.ContextTokenBudget,
		CharsPerToken: cfg.CharsPerToken,
		ChunkSize:     cfg.BrowseChunkMaxLength,
		Model:         modelOf(cfg.SmartLLM),
	})

	opts := []Option{
		WithLLMs(smart, strategic),
		WithScraper(pool),
		WithRanker(ranker),
		WithCurator(contextmgr.NewCurator(smart, family, cfg.MaxCuratedSources)),
	}
	if asm.vsFilter != nil {
		opts = append(opts, WithVectorStoreFilter(asm.vsFilter))
	}
	if asm.docs != nil {
		opts = append(opts, WithDocumentLoader(asm.docs))
	}

	var mcpRetriever *mcp.Retriever
	if cfg.HasRetriever(retrievers.MCPName) {
		configs := append([]mcp.ServerConfig(nil), cfg.MCPServers...)
		configs = append(configs, t.MCPConfigs...)
		if len(configs) > 0 {
			mcpRetriever = mcp.NewRetriever(configs, strategic, family, streamer)
			opts = append(opts, WithMCP(mcpRetriever))
		} else {
			logging.Get(logging.CategoryMCP).Warn("mcp retriever enabled but no server configurations found")
		}
	}

	generator := report.NewGenerator(smart, family, streamer, report.Options{
		ReportFormat: cfg.ReportFormat,
		Language:     cfg.Language,
		TotalWords:   cfg.TotalWords,
	})

	return &Engine{
		Conductor:    New(t, cfg, family, streamer, costs, opts...),
		Generator:    generator,
		Costs:        costs,
		Streamer:     streamer,
		mcpRetriever: mcpRetriever,
	}, nil
}

// Close releases per-task resources (the MCP client).
func (e *Engine) Close() {
	if e.mcpRetriever != nil {
		e.mcpRetriever.Close()
	}
}

func modelOf(spec string) string {
	_, model, err := llm.ParseSpec(spec)
	if err != nil {
		return spec
	}
	return model
}
