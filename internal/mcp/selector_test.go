package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchnerd/internal/llm"
	"researchnerd/internal/prompts"
	"researchnerd/internal/stream"
)

// fakeLLM scripts chat responses for selector and skill tests.
type fakeLLM struct {
	model     string
	response  string
	err       error
	toolResp  *llm.ToolResponse
	chatCalls int
}

func (f *fakeLLM) Model() string { return f.model }

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	f.chatCalls++
	return f.response, f.err
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options, onToken func(string)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if onToken != nil {
		onToken(f.response)
	}
	return f.response, nil
}

func (f *fakeLLM) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, opts llm.Options) (*llm.ToolResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.toolResp, nil
}

func tools(names ...string) []Tool {
	out := make([]Tool, len(names))
	for i, n := range names {
		out[i] = Tool{Server: "s", Schema: ToolSchema{Name: n, Description: fmt.Sprintf("%s tool", n)}}
	}
	return out
}

func newSelector(l llm.Client) *ToolSelector {
	return NewToolSelector(l, prompts.DefaultFamily{}, stream.NewPublisher())
}

func TestSelect_LLMSelection(t *testing.T) {
	l := &fakeLLM{response: `{"selected_tools":[{"index":1,"name":"web_search","relevance_score":9,"reason":"direct match"}],"selection_reasoning":"search first"}`}
	s := newSelector(l)

	got := s.Select(context.Background(), "q", tools("calculator", "web_search", "deploy"), 3)
	require.Len(t, got, 1)
	assert.Equal(t, "web_search", got[0].Schema.Name)
}

func TestSelect_MalformedFallsBackToKeywords(t *testing.T) {
	l := &fakeLLM{response: "not-json"}
	s := newSelector(l)

	got := s.Select(context.Background(), "q", tools("deploy_app", "search_papers", "format_disk"), 2)
	require.NotEmpty(t, got)
	assert.Equal(t, "search_papers", got[0].Schema.Name)
}

func TestSelect_LLMErrorFallsBack(t *testing.T) {
	l := &fakeLLM{err: fmt.Errorf("provider down")}
	s := newSelector(l)

	got := s.Select(context.Background(), "q", tools("get_weather", "noop"), 3)
	require.Len(t, got, 1)
	assert.Equal(t, "get_weather", got[0].Schema.Name)
}

func TestSelect_EmptyTools(t *testing.T) {
	s := newSelector(&fakeLLM{})
	assert.Nil(t, s.Select(context.Background(), "q", nil, 3))
}

func TestFallback_NameBeatsDescription(t *testing.T) {
	s := newSelector(&fakeLLM{})
	all := []Tool{
		{Schema: ToolSchema{Name: "deploy", Description: "can search and list things"}},
		{Schema: ToolSchema{Name: "search_index", Description: "does stuff"}},
	}
	got := s.fallback(all, 2)
	require.Len(t, got, 2)
	// "search_index" scores 3 on the name; the other only 2 via description.
	assert.Equal(t, "search_index", got[0].Schema.Name)
}

func TestFallback_DropsZeroScores(t *testing.T) {
	s := newSelector(&fakeLLM{})
	got := s.fallback([]Tool{{Schema: ToolSchema{Name: "noop", Description: "does nothing"}}}, 3)
	assert.Empty(t, got)
}

func TestSelect_OutOfRangeIndexIgnored(t *testing.T) {
	l := &fakeLLM{response: `{"selected_tools":[{"index":99,"name":"ghost"},{"index":0,"name":"search_a"}]}`}
	s := newSelector(l)

	got := s.Select(context.Background(), "q", tools("search_a", "search_b"), 2)
	require.Len(t, got, 1)
	assert.Equal(t, "search_a", got[0].Schema.Name)
}
