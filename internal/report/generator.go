// Package report drives the final LLM calls that turn a research context
// into a long-form markdown report.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"researchnerd/internal/jsonx"
	"researchnerd/internal/llm"
	"researchnerd/internal/logging"
	"researchnerd/internal/prompts"
	"researchnerd/internal/stream"
	"researchnerd/internal/task"
)

// ErrEmptyContext marks report generation attempted with no research
// context and no fallback corpus. The only task-fatal condition.
var ErrEmptyContext = errors.New("no research context available for report generation")

// Options shape the generated report.
type Options struct {
	ReportFormat string
	Language     string
	TotalWords   int
}

// WriteOptions vary a single write call.
type WriteOptions struct {
	// ExistingHeaders from sibling sections (subtopic mode).
	ExistingHeaders []string
	// CustomPrompt overrides the prompt body.
	CustomPrompt string
	// ExternalContext overrides the task context.
	ExternalContext string
}

// Generator produces reports through the smart LLM, streaming tokens as
// they arrive.
type Generator struct {
	smart    llm.Client
	family   prompts.Family
	streamer *stream.Publisher
	opts     Options
}

// NewGenerator creates a generator.
func NewGenerator(smart llm.Client, family prompts.Family, streamer *stream.Publisher, opts Options) *Generator {
	if opts.TotalWords <= 0 {
		opts.TotalWords = 1200
	}
	if opts.ReportFormat == "" {
		opts.ReportFormat = "apa"
	}
	if opts.Language == "" {
		opts.Language = "english"
	}
	return &Generator{smart: smart, family: family, streamer: streamer, opts: opts}
}

// WriteReport writes the report for the task from the given context. On an
// empty context it returns an explicit error report alongside
// ErrEmptyContext instead of invoking the LLM with nothing.
func (g *Generator) WriteReport(ctx context.Context, t *task.ResearchTask, researchContext string, wo WriteOptions) (string, error) {
	if wo.ExternalContext != "" {
		researchContext = wo.ExternalContext
	}
	if strings.TrimSpace(researchContext) == "" {
		return emptyContextReport(t.Query), ErrEmptyContext
	}

	prompt := g.promptFor(t, researchContext, wo)
	messages := []llm.Message{llm.User(prompt)}
	if t.Role != "" {
		messages = []llm.Message{llm.System(t.Role), llm.User(prompt)}
	}

	logging.Get(logging.CategoryReport).Info("writing %s for %q (%d chars of context)", t.ReportType, t.Query, len(researchContext))
	return g.streamWithFallback(ctx, messages)
}

// WriteIntroduction writes the report introduction.
func (g *Generator) WriteIntroduction(ctx context.Context, t *task.ResearchTask, researchContext string) (string, error) {
	if strings.TrimSpace(researchContext) == "" {
		return "", ErrEmptyContext
	}
	prompt := g.family.IntroductionPrompt(t.Query, researchContext, g.opts.Language)
	return g.streamWithFallback(ctx, g.withRole(t, prompt))
}

// WriteConclusion writes the report conclusion from the report body.
func (g *Generator) WriteConclusion(ctx context.Context, t *task.ResearchTask, reportBody string) (string, error) {
	prompt := g.family.ConclusionPrompt(t.Query, reportBody, g.opts.Language)
	return g.streamWithFallback(ctx, g.withRole(t, prompt))
}

// GetSubtopics asks for the subtopic list for a detailed report. Falls
// back to the bare query on parse failure.
func (g *Generator) GetSubtopics(ctx context.Context, t *task.ResearchTask, researchContext string) ([]string, error) {
	prompt := g.family.SubtopicsPrompt(t.Query, researchContext, t.MaxSubtopics)
	response, err := g.smart.Chat(ctx, g.withRole(t, prompt), llm.Options{})
	if err != nil {
		return []string{t.Query}, nil
	}
	subtopics := jsonx.StringList(response)
	if len(subtopics) == 0 {
		return []string{t.Query}, nil
	}
	if t.MaxSubtopics > 0 && len(subtopics) > t.MaxSubtopics {
		subtopics = subtopics[:t.MaxSubtopics]
	}
	return subtopics, nil
}

// GetDraftSectionTitles asks for draft section headers for a subtopic.
func (g *Generator) GetDraftSectionTitles(ctx context.Context, t *task.ResearchTask, subtopic, researchContext string) ([]string, error) {
	prompt := g.family.DraftTitlesPrompt(t.ParentQuery, subtopic, researchContext)
	response, err := g.smart.Chat(ctx, g.withRole(t, prompt), llm.Options{})
	if err != nil {
		return nil, err
	}

	var titles []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "###") {
			titles = append(titles, strings.TrimSpace(strings.TrimLeft(line, "# ")))
		}
	}
	return titles, nil
}

func (g *Generator) withRole(t *task.ResearchTask, prompt string) []llm.Message {
	if t.Role == "" {
		return []llm.Message{llm.User(prompt)}
	}
	return []llm.Message{llm.System(t.Role), llm.User(prompt)}
}

// promptFor selects the prompt for the task's report type.
func (g *Generator) promptFor(t *task.ResearchTask, researchContext string, wo WriteOptions) string {
	if wo.CustomPrompt != "" {
		return g.family.CustomReportPrompt(wo.CustomPrompt, researchContext)
	}
	switch t.ReportType {
	case task.ResourceReport:
		return g.family.ResourceReportPrompt(t.Query, researchContext, g.opts.ReportFormat, g.opts.Language, g.opts.TotalWords)
	case task.OutlineReport:
		return g.family.OutlineReportPrompt(t.Query, researchContext, g.opts.Language)
	case task.CustomReport:
		return g.family.CustomReportPrompt(t.CustomPrompt, researchContext)
	case task.SubtopicReport:
		return g.family.SubtopicReportPrompt(t.ParentQuery, t.Query, researchContext, wo.ExistingHeaders, string(t.Tone), g.opts.Language, g.opts.TotalWords)
	default:
		return g.family.ReportPrompt(t.Query, researchContext, g.opts.ReportFormat, string(t.Tone), g.opts.Language, g.opts.TotalWords)
	}
}

// streamWithFallback streams the completion, degrading from the
// system+user shape to a single collapsed user message when the provider
// rejects the first attempt.
func (g *Generator) streamWithFallback(ctx context.Context, messages []llm.Message) (string, error) {
	onToken := func(token string) {
		g.streamer.Publish(stream.Event{Kind: stream.KindReport, Content: "report_token", Output: token})
	}

	text, err := g.smart.ChatStream(ctx, messages, llm.Options{}, onToken)
	if err == nil {
		return text, nil
	}
	logging.Get(logging.CategoryReport).Warn("report stream failed (%v), retrying with single-message shape", err)

	text, err2 := g.smart.ChatStream(ctx, llm.Collapse(messages), llm.Options{}, onToken)
	if err2 != nil {
		return "", fmt.Errorf("report generation failed: %w (fallback: %v)", err, err2)
	}
	return text, nil
}

// emptyContextReport is the explicit error report for the empty-input
// case.
func emptyContextReport(query string) string {
	return fmt.Sprintf(`# Research Report Unavailable

No sources could be gathered for the query: %q.

Every configured retriever and MCP server returned no usable content, so a
report cannot be written. Check retriever credentials and connectivity,
then retry.`, query)
}
