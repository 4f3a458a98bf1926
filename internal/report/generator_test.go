package report

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchnerd/internal/llm"
	"researchnerd/internal/prompts"
	"researchnerd/internal/stream"
	"researchnerd/internal/task"
)

// scriptedLLM fails the first n calls, then streams a canned report.
type scriptedLLM struct {
	failFirst int
	calls     int
	lastMsgs  []llm.Message
	response  string
	chatResp  string
	chatErr   error
}

func (s *scriptedLLM) Model() string { return "fake-model" }

func (s *scriptedLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return s.chatResp, s.chatErr
}

func (s *scriptedLLM) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options, onToken func(string)) (string, error) {
	s.calls++
	s.lastMsgs = messages
	if s.calls <= s.failFirst {
		return "", fmt.Errorf("provider rejected request")
	}
	for _, tok := range strings.SplitAfter(s.response, " ") {
		if onToken != nil {
			onToken(tok)
		}
	}
	return s.response, nil
}

func (s *scriptedLLM) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDef, opts llm.Options) (*llm.ToolResponse, error) {
	return &llm.ToolResponse{}, nil
}

func newGenerator(l llm.Client) (*Generator, *stream.Publisher) {
	p := stream.NewPublisher()
	return NewGenerator(l, prompts.DefaultFamily{}, p, Options{TotalWords: 500}), p
}

func mustTask(t *testing.T, opts ...task.Option) *task.ResearchTask {
	tk, err := task.New("capital of France", opts...)
	require.NoError(t, err)
	return tk
}

func TestWriteReport_StreamsTokens(t *testing.T) {
	l := &scriptedLLM{response: "# Report\n\nParis is the capital."}
	g, p := newGenerator(l)
	ch := p.Events()

	got, err := g.WriteReport(context.Background(), mustTask(t), "context here", WriteOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "# "))

	p.Close()
	tokens := 0
	for ev := range ch {
		if ev.Kind == stream.KindReport {
			tokens++
		}
	}
	assert.Greater(t, tokens, 1, "tokens must stream as they arrive")
}

func TestWriteReport_EmptyContext(t *testing.T) {
	l := &scriptedLLM{response: "should never run"}
	g, _ := newGenerator(l)

	got, err := g.WriteReport(context.Background(), mustTask(t), "   ", WriteOptions{})
	assert.ErrorIs(t, err, ErrEmptyContext)
	assert.Contains(t, got, "Research Report Unavailable")
	assert.Zero(t, l.calls, "the LLM must not be invoked with an empty context")
}

func TestWriteReport_FallsBackToSingleMessage(t *testing.T) {
	l := &scriptedLLM{failFirst: 1, response: "# Report body"}
	g, _ := newGenerator(l)

	tk := mustTask(t, task.WithPersona("agent", "You are a researcher."))
	got, err := g.WriteReport(context.Background(), tk, "some context", WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "# Report body", got)

	require.Len(t, l.lastMsgs, 1, "fallback collapses to a single message")
	assert.Equal(t, "user", l.lastMsgs[0].Role)
	assert.Contains(t, l.lastMsgs[0].Content, "You are a researcher.")
}

func TestWriteReport_ExternalContextOverride(t *testing.T) {
	l := &scriptedLLM{response: "# R"}
	g, _ := newGenerator(l)

	_, err := g.WriteReport(context.Background(), mustTask(t), "", WriteOptions{ExternalContext: "override context"})
	require.NoError(t, err)
	assert.Contains(t, l.lastMsgs[len(l.lastMsgs)-1].Content, "override context")
}

func TestGetSubtopics_ParsesAndCaps(t *testing.T) {
	l := &scriptedLLM{chatResp: `["a", "b", "c", "d", "e", "f", "g"]`}
	g, _ := newGenerator(l)

	tk := mustTask(t)
	subtopics, err := g.GetSubtopics(context.Background(), tk, "ctx")
	require.NoError(t, err)
	assert.Len(t, subtopics, tk.MaxSubtopics)
}

func TestGetSubtopics_FallsBackToQuery(t *testing.T) {
	l := &scriptedLLM{chatResp: "not json at all"}
	g, _ := newGenerator(l)

	subtopics, err := g.GetSubtopics(context.Background(), mustTask(t), "ctx")
	require.NoError(t, err)
	assert.Equal(t, []string{"capital of France"}, subtopics)
}

func TestGetDraftSectionTitles(t *testing.T) {
	l := &scriptedLLM{chatResp: "### First Section\nprose\n### Second Section"}
	g, _ := newGenerator(l)

	titles, err := g.GetDraftSectionTitles(context.Background(), mustTask(t), "sub", "ctx")
	require.NoError(t, err)
	assert.Equal(t, []string{"First Section", "Second Section"}, titles)
}
