package contextmgr

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchnerd/internal/llm"
	"researchnerd/internal/prompts"
	"researchnerd/internal/scraper"
)

type cannedChat struct {
	response string
	err      error
}

func (c *cannedChat) Model() string { return "fake" }

func (c *cannedChat) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return c.response, c.err
}

func (c *cannedChat) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options, onToken func(string)) (string, error) {
	return c.response, c.err
}

func (c *cannedChat) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, opts llm.Options) (*llm.ToolResponse, error) {
	return &llm.ToolResponse{Content: c.response}, c.err
}

func curatorSources() []scraper.Source {
	return []scraper.Source{
		{URL: "https://a.example", Title: "A", RawText: "content a", Status: scraper.StatusSuccess},
		{URL: "https://b.example", Title: "B", RawText: "content b", Status: scraper.StatusSuccess},
	}
}

func TestCurate_KeepsSelectedPreservingContent(t *testing.T) {
	c := NewCurator(&cannedChat{response: `[{"url": "https://b.example", "title": "B", "raw_content": "REWRITTEN"}]`}, prompts.DefaultFamily{}, 10)

	got := c.Curate(context.Background(), "role", "q", curatorSources())
	require.Len(t, got, 1)
	assert.Equal(t, "https://b.example", got[0].URL)
	assert.Equal(t, "content b", got[0].RawText, "curation must never rewrite source content")
}

func TestCurate_ParseFailureReturnsOriginal(t *testing.T) {
	c := NewCurator(&cannedChat{response: "sorry, no json today"}, prompts.DefaultFamily{}, 10)

	sources := curatorSources()
	got := c.Curate(context.Background(), "role", "q", sources)
	assert.Equal(t, sources, got)
}

func TestCurate_LLMErrorReturnsOriginal(t *testing.T) {
	c := NewCurator(&cannedChat{err: fmt.Errorf("down")}, prompts.DefaultFamily{}, 10)

	sources := curatorSources()
	assert.Equal(t, sources, c.Curate(context.Background(), "role", "q", sources))
}

func TestCurate_EmptyInput(t *testing.T) {
	c := NewCurator(&cannedChat{}, prompts.DefaultFamily{}, 10)
	assert.Empty(t, c.Curate(context.Background(), "role", "q", nil))
}
