// Package task defines the research task model: report types, sources,
// tones, MCP strategy resolution, and the task record owned by a conductor.
package task

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"researchnerd/internal/logging"
	"researchnerd/internal/mcp"
)

// ReportType enumerates the report kinds the engine can produce.
type ReportType string

const (
	ResearchReport ReportType = "research_report"
	ResourceReport ReportType = "resource_report"
	OutlineReport  ReportType = "outline_report"
	CustomReport   ReportType = "custom_report"
	SubtopicReport ReportType = "subtopic_report"
	DeepReport     ReportType = "deep"
	MultiAgents    ReportType = "multi_agents"
)

// ReportSource enumerates where research material comes from.
type ReportSource string

const (
	SourceWeb         ReportSource = "web"
	SourceLocal       ReportSource = "local"
	SourceHybrid      ReportSource = "hybrid"
	SourceLangDocs    ReportSource = "langchain_docs"
	SourceLangVStore  ReportSource = "langchain_vstore"
	SourceAzure       ReportSource = "azure"
)

// Tone enumerates report tones accepted by name.
type Tone string

const (
	ToneObjective   Tone = "objective"
	ToneFormal      Tone = "formal"
	ToneAnalytical  Tone = "analytical"
	TonePersuasive  Tone = "persuasive"
	ToneInformative Tone = "informative"
	ToneExplanatory Tone = "explanatory"
	ToneDescriptive Tone = "descriptive"
	ToneCritical    Tone = "critical"
	ToneComparative Tone = "comparative"
	ToneSpeculative Tone = "speculative"
	ToneReflective  Tone = "reflective"
	ToneNarrative   Tone = "narrative"
	ToneHumorous    Tone = "humorous"
	ToneOptimistic  Tone = "optimistic"
	TonePessimistic Tone = "pessimistic"
	ToneSimple      Tone = "simple"
	ToneCasual      Tone = "casual"
)

// MCPStrategy controls how often MCP research runs per task.
type MCPStrategy string

const (
	MCPFast     MCPStrategy = "fast"     // run once with the original query, cache results
	MCPDeep     MCPStrategy = "deep"     // run once per sub-query, no cache
	MCPDisabled MCPStrategy = "disabled" // never invoke MCP
)

// ResolveMCPStrategy resolves the strategy from task option then config
// value, defaulting to fast. Legacy aliases are accepted with a warning;
// unknown values warn and coerce to fast.
func ResolveMCPStrategy(taskOption, configValue string) MCPStrategy {
	if s, ok := coerceStrategy(taskOption); ok {
		return s
	}
	if s, ok := coerceStrategy(configValue); ok {
		return s
	}
	return MCPFast
}

func coerceStrategy(raw string) (MCPStrategy, bool) {
	switch strings.TrimSpace(raw) {
	case "":
		return "", false
	case string(MCPFast), string(MCPDeep), string(MCPDisabled):
		return MCPStrategy(raw), true
	case "optimized":
		logging.Conductor("mcp_strategy 'optimized' is deprecated, use 'fast'")
		return MCPFast, true
	case "comprehensive":
		logging.Conductor("mcp_strategy 'comprehensive' is deprecated, use 'deep'")
		return MCPDeep, true
	default:
		logging.Conductor("invalid mcp_strategy %q, defaulting to 'fast'", raw)
		return MCPFast, true
	}
}

// ResearchTask is one research request, created per run and mutated only by
// its owning conductor.
type ResearchTask struct {
	ID          string
	Query       string
	ParentQuery string
	ReportType  ReportType
	Source      ReportSource
	Tone        Tone
	Language    string

	// Retrieval scoping
	QueryDomains []string
	Headers      map[string]string
	SourceURLs   []string
	// ComplementSourceURLs adds a web search pass on top of SourceURLs.
	ComplementSourceURLs bool

	// Subtopic mode
	Subtopics    []string
	MaxSubtopics int

	// Persona, chosen lazily when empty
	Agent string
	Role  string

	// MCP
	MCPConfigs  []mcp.ServerConfig
	MCPStrategy string // raw value; resolved against config by the conductor

	// Output shaping
	CustomPrompt string
	Verbose      bool
}

// New creates a validated task. Unknown enum values are rejected here so the
// pipeline never sees them.
func New(query string, opts ...Option) (*ResearchTask, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	t := &ResearchTask{
		ID:           uuid.NewString(),
		Query:        query,
		ReportType:   ResearchReport,
		Source:       SourceWeb,
		Tone:         ToneObjective,
		Language:     "english",
		MaxSubtopics: 5,
		Verbose:      true,
	}
	for _, opt := range opts {
		opt(t)
	}
	if !validReportType(t.ReportType) {
		return nil, fmt.Errorf("unknown report type %q", t.ReportType)
	}
	if !validSource(t.Source) {
		return nil, fmt.Errorf("unknown report source %q", t.Source)
	}
	return t, nil
}

// Option mutates a task at construction time.
type Option func(*ResearchTask)

// WithReportType sets the report type.
func WithReportType(rt ReportType) Option { return func(t *ResearchTask) { t.ReportType = rt } }

// WithSource sets the report source.
func WithSource(s ReportSource) Option { return func(t *ResearchTask) { t.Source = s } }

// WithTone sets the tone.
func WithTone(tone Tone) Option { return func(t *ResearchTask) { t.Tone = tone } }

// WithParentQuery sets the parent query for subtopic reports.
func WithParentQuery(q string) Option { return func(t *ResearchTask) { t.ParentQuery = q } }

// WithQueryDomains restricts retrieval to the given domains.
func WithQueryDomains(domains []string) Option {
	return func(t *ResearchTask) { t.QueryDomains = domains }
}

// WithHeaders attaches extra request headers.
func WithHeaders(h map[string]string) Option { return func(t *ResearchTask) { t.Headers = h } }

// WithSourceURLs pins research to the given URLs. complement enables an
// additional web search pass.
func WithSourceURLs(urls []string, complement bool) Option {
	return func(t *ResearchTask) {
		t.SourceURLs = urls
		t.ComplementSourceURLs = complement
	}
}

// WithMCP configures MCP servers and strategy for this task.
func WithMCP(configs []mcp.ServerConfig, strategy string) Option {
	return func(t *ResearchTask) {
		t.MCPConfigs = configs
		t.MCPStrategy = strategy
	}
}

// WithPersona pre-chooses the agent persona, skipping LLM selection.
func WithPersona(agent, role string) Option {
	return func(t *ResearchTask) {
		t.Agent = agent
		t.Role = role
	}
}

// WithCustomPrompt overrides the report prompt body.
func WithCustomPrompt(p string) Option { return func(t *ResearchTask) { t.CustomPrompt = p } }

// WithLanguage sets the output language.
func WithLanguage(lang string) Option { return func(t *ResearchTask) { t.Language = lang } }

func validReportType(rt ReportType) bool {
	switch rt {
	case ResearchReport, ResourceReport, OutlineReport, CustomReport, SubtopicReport, DeepReport, MultiAgents:
		return true
	}
	return false
}

func validSource(s ReportSource) bool {
	switch s {
	case SourceWeb, SourceLocal, SourceHybrid, SourceLangDocs, SourceLangVStore, SourceAzure:
		return true
	}
	return false
}
