// Package config resolves runtime settings from layered sources: built-in
// defaults, then the YAML config file, then environment variables. A .env
// file in the working directory is folded into the environment first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"researchnerd/internal/llm"
	"researchnerd/internal/mcp"
	"researchnerd/internal/retrievers"
)

// Config is the resolved runtime configuration for research tasks.
type Config struct {
	// Retrievers is the ordered list of enabled retriever names.
	Retrievers []string `yaml:"retrievers"`

	// LLM triples, "<provider>:<model>".
	FastLLM      string `yaml:"fast_llm"`
	SmartLLM     string `yaml:"smart_llm"`
	StrategicLLM string `yaml:"strategic_llm"`

	// Embedding triple, "<provider>:<model>".
	Embedding string `yaml:"embedding"`

	ReasoningEffort string `yaml:"reasoning_effort"` // low|medium|high

	ReportSource string `yaml:"report_source"`
	MCPStrategy  string `yaml:"mcp_strategy"`
	DocPath      string `yaml:"doc_path"`

	// Budgets and limits
	MaxIterations            int  `yaml:"max_iterations"`
	MaxSearchResultsPerQuery int  `yaml:"max_search_results_per_query"`
	MaxSubQueryWorkers       int  `yaml:"max_sub_query_workers"`
	TotalWords               int  `yaml:"total_words"`
	ContextTokenBudget       int  `yaml:"context_token_budget"`
	CharsPerToken            int  `yaml:"chars_per_token"`
	BrowseChunkMaxLength     int  `yaml:"browse_chunk_max_length"`
	CurateSources            bool `yaml:"curate_sources"`
	MaxCuratedSources        int  `yaml:"max_curated_sources"`

	// Token caps for the overflow fallback ladder.
	StrategicTokenLimit int `yaml:"strategic_token_limit"`
	SmartTokenLimit     int `yaml:"smart_token_limit"`

	// Scraper
	Scraper   string `yaml:"scraper"` // static|browser
	UserAgent string `yaml:"user_agent"`

	// Report
	ReportFormat string `yaml:"report_format"`
	Language     string `yaml:"language"`

	// MCP servers configured globally (tasks may add their own).
	MCPServers []mcp.ServerConfig `yaml:"mcp_servers"`

	// Logging
	DebugMode bool   `yaml:"debug_mode"`
	LogLevel  string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Retrievers:               []string{"tavily"},
		FastLLM:                  "openai:gpt-4o-mini",
		SmartLLM:                 "openai:gpt-4o",
		StrategicLLM:             "openai:gpt-4o",
		Embedding:                "google_genai:gemini-embedding-001",
		ReasoningEffort:          "medium",
		ReportSource:             "web",
		MCPStrategy:              "fast",
		MaxIterations:            3,
		MaxSearchResultsPerQuery: 5,
		MaxSubQueryWorkers:       5,
		TotalWords:               1200,
		ContextTokenBudget:       8000,
		CharsPerToken:            4,
		BrowseChunkMaxLength:     8192,
		CurateSources:            false,
		MaxCuratedSources:        10,
		StrategicTokenLimit:      4000,
		SmartTokenLimit:          6000,
		Scraper:                  "static",
		UserAgent:                "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		ReportFormat:             "apa",
		Language:                 "english",
		LogLevel:                 "info",
	}
}

// Load resolves the configuration: defaults <- yaml file (optional) <- env.
func Load(path string) (Config, error) {
	// .env first so later env lookups see it. Missing files are fine.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays recognized environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("RETRIEVER"); v != "" {
		c.Retrievers = splitList(v)
	}
	setString(&c.FastLLM, "FAST_LLM")
	setString(&c.SmartLLM, "SMART_LLM")
	setString(&c.StrategicLLM, "STRATEGIC_LLM")
	setString(&c.Embedding, "EMBEDDING")
	setString(&c.ReasoningEffort, "REASONING_EFFORT")
	setString(&c.ReportSource, "REPORT_SOURCE")
	setString(&c.MCPStrategy, "MCP_STRATEGY")
	setString(&c.DocPath, "DOC_PATH")
	setString(&c.Scraper, "SCRAPER")
	setString(&c.UserAgent, "USER_AGENT")
	setInt(&c.MaxIterations, "MAX_ITERATIONS")
	setInt(&c.MaxSearchResultsPerQuery, "MAX_SEARCH_RESULTS_PER_QUERY")
	setInt(&c.TotalWords, "TOTAL_WORDS")
	setBool(&c.CurateSources, "CURATE_SOURCES")
	setBool(&c.DebugMode, "DEBUG_MODE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			*dst = true
		case "false", "0", "no", "off":
			*dst = false
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// validate rejects configurations the pipeline cannot run with. Missing
// credentials are not validated here; the readiness probe reports those.
func (c *Config) validate() error {
	known := make(map[string]bool)
	for _, name := range retrievers.Names() {
		known[name] = true
	}
	for _, name := range c.Retrievers {
		if !known[name] {
			return fmt.Errorf("invalid retriever %q, available: %v", name, retrievers.Names())
		}
	}

	for _, spec := range []string{c.FastLLM, c.SmartLLM, c.StrategicLLM} {
		if _, _, err := llm.ParseSpec(spec); err != nil {
			return err
		}
	}
	if c.Embedding != "" && !strings.Contains(c.Embedding, ":") {
		return fmt.Errorf("invalid EMBEDDING %q, want \"<provider>:<model>\"", c.Embedding)
	}

	switch c.ReasoningEffort {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("invalid REASONING_EFFORT %q, want low|medium|high", c.ReasoningEffort)
	}
	return nil
}

// EmbeddingProvider splits the embedding triple.
func (c *Config) EmbeddingProvider() (provider, model string) {
	provider, model, _ = strings.Cut(c.Embedding, ":")
	return provider, model
}

// HasRetriever reports whether name is enabled.
func (c *Config) HasRetriever(name string) bool {
	for _, r := range c.Retrievers {
		if r == name {
			return true
		}
	}
	return false
}
