// Package llm exposes the chat providers behind one small interface.
// Providers are selected from "<provider>:<model>" triples; usage is
// reported through a callback so the cost tracker stays provider-agnostic.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one chat turn.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// System builds a system message.
func System(content string) Message { return Message{Role: "system", Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: "user", Content: content} }

// Options shape a single chat call. Zero values mean provider defaults.
type Options struct {
	Temperature     float32
	HasTemperature  bool
	MaxTokens       int
	ReasoningEffort string // low|medium|high, passed through where supported
}

// WithTemperature returns o with an explicit temperature.
func (o Options) WithTemperature(t float32) Options {
	o.Temperature = t
	o.HasTemperature = true
	return o
}

// ToolDef describes a callable tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResponse carries the model's text plus any tool calls it issued.
type ToolResponse struct {
	Content string
	Calls   []ToolCall
}

// UsageCallback receives token counts after each completed call.
type UsageCallback func(promptTokens, completionTokens int, model string)

// Client is the minimal chat surface the engine drives.
type Client interface {
	// Model returns the configured model identifier.
	Model() string

	// Chat runs a blocking completion over the messages.
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)

	// ChatStream streams tokens through onToken and returns the full text.
	ChatStream(ctx context.Context, messages []Message, opts Options, onToken func(string)) (string, error)

	// ChatWithTools runs a completion with the tools bound, returning any
	// tool calls the model issued alongside its text.
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDef, opts Options) (*ToolResponse, error)
}

// ParseSpec splits a "<provider>:<model>" triple.
func ParseSpec(spec string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(spec, ":")
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("invalid llm spec %q, want \"<provider>:<model>\"", spec)
	}
	return provider, model, nil
}

// New constructs a client for the given "<provider>:<model>" spec.
func New(spec string, onUsage UsageCallback) (Client, error) {
	provider, model, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	switch provider {
	case "google_genai", "gemini", "google":
		return newGeminiClient(model, onUsage)
	case "openai", "groq", "openrouter", "ollama_chat":
		return newOpenAIClient(provider, model, onUsage)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}

// splitSystem separates the leading system message from the rest. Providers
// that take a dedicated system slot use this; the single-message fallback
// path folds everything into one user message instead.
func splitSystem(messages []Message) (system string, rest []Message) {
	for i, m := range messages {
		if m.Role == "system" && system == "" {
			system = m.Content
			continue
		}
		rest = append(rest, messages[i])
	}
	return system, rest
}

// Collapse folds a message list into one user message. Used as the last
// fallback when a provider rejects the system+user shape.
func Collapse(messages []Message) []Message {
	var sb strings.Builder
	for _, m := range messages {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.Content)
	}
	return []Message{User(sb.String())}
}
