package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearResearchEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RETRIEVER", "FAST_LLM", "SMART_LLM", "STRATEGIC_LLM", "EMBEDDING",
		"REASONING_EFFORT", "REPORT_SOURCE", "MCP_STRATEGY", "DOC_PATH",
		"SCRAPER", "MAX_ITERATIONS", "TOTAL_WORDS", "CURATE_SOURCES",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearResearchEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"tavily"}, cfg.Retrievers)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, "fast", cfg.MCPStrategy)
	assert.Equal(t, "medium", cfg.ReasoningEffort)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearResearchEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retrievers: [duckduckgo]
smart_llm: "openai:gpt-4o"
max_iterations: 5
`), 0644))

	t.Setenv("RETRIEVER", "duckduckgo,mcp")
	t.Setenv("SMART_LLM", "google_genai:gemini-2.5-pro")
	t.Setenv("MCP_STRATEGY", "deep")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"duckduckgo", "mcp"}, cfg.Retrievers)
	assert.Equal(t, "google_genai:gemini-2.5-pro", cfg.SmartLLM)
	assert.Equal(t, 5, cfg.MaxIterations, "file value survives when env is silent")
	assert.Equal(t, "deep", cfg.MCPStrategy)
}

func TestLoad_InvalidRetriever(t *testing.T) {
	clearResearchEnv(t)
	t.Setenv("RETRIEVER", "altavista")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_InvalidLLMSpec(t *testing.T) {
	clearResearchEnv(t)
	t.Setenv("FAST_LLM", "just-a-model")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_InvalidReasoningEffort(t *testing.T) {
	clearResearchEnv(t)
	t.Setenv("REASONING_EFFORT", "extreme")
	_, err := Load("")
	assert.Error(t, err)
}

func TestProbe_MissingKeys(t *testing.T) {
	clearResearchEnv(t)
	t.Setenv("TAVILY_API_KEY", "")
	require.NoError(t, os.Unsetenv("TAVILY_API_KEY"))
	t.Setenv("OPENAI_API_KEY", "")
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))

	cfg := Default()
	results := cfg.Probe()

	byName := map[string]ProbeResult{}
	for _, r := range results {
		byName[r.Name] = r
	}

	tavily := byName["retriever:tavily"]
	assert.False(t, tavily.Ready)
	assert.Contains(t, tavily.MissingKeys, "TAVILY_API_KEY")

	openai := byName["llm:openai"]
	assert.False(t, openai.Ready)
}

func TestProbe_ReadyWithKeys(t *testing.T) {
	clearResearchEnv(t)
	t.Setenv("TAVILY_API_KEY", "k")
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("GOOGLE_API_KEY", "k")

	cfg := Default()
	for _, r := range cfg.Probe() {
		assert.True(t, r.Ready, "%s should be ready", r.Name)
	}
}

func TestHasRetriever(t *testing.T) {
	cfg := Config{Retrievers: []string{"tavily", "mcp"}}
	assert.True(t, cfg.HasRetriever("mcp"))
	assert.False(t, cfg.HasRetriever("bing"))
}
