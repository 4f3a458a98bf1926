package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"researchnerd/internal/jsonx"
	"researchnerd/internal/logging"
)

// openaiClient drives any OpenAI-compatible chat endpoint. The groq and
// openrouter providers reuse it with their own base URLs and key envs.
type openaiClient struct {
	client  openai.Client
	model   string
	onUsage UsageCallback
}

func newOpenAIClient(provider, model string, onUsage UsageCallback) (*openaiClient, error) {
	var keyEnv, baseURL string
	switch provider {
	case "openai":
		keyEnv = "OPENAI_API_KEY"
		baseURL = os.Getenv("OPENAI_BASE_URL")
	case "groq":
		keyEnv = "GROQ_API_KEY"
		baseURL = "https://api.groq.com/openai/v1"
	case "openrouter":
		keyEnv = "OPENROUTER_API_KEY"
		baseURL = "https://openrouter.ai/api/v1"
	case "ollama_chat":
		keyEnv = ""
		baseURL = os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
	}

	opts := []option.RequestOption{}
	if keyEnv != "" {
		key := os.Getenv(keyEnv)
		if key == "" {
			return nil, fmt.Errorf("%s is required for the %s provider", keyEnv, provider)
		}
		opts = append(opts, option.WithAPIKey(key))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openaiClient{
		client:  openai.NewClient(opts...),
		model:   model,
		onUsage: onUsage,
	}, nil
}

func (c *openaiClient) Model() string { return c.model }

func (c *openaiClient) buildParams(messages []Message, opts Options) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{Model: shared.ChatModel(c.model)}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if opts.HasTemperature {
		params.Temperature = openai.Float(float64(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(opts.ReasoningEffort)
	}
	return params
}

func (c *openaiClient) reportUsage(usage openai.CompletionUsage) {
	if c.onUsage == nil {
		return
	}
	c.onUsage(int(usage.PromptTokens), int(usage.CompletionTokens), c.model)
}

func (c *openaiClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(messages, opts))
	if err != nil {
		return "", fmt.Errorf("openai chat failed: %w", err)
	}
	c.reportUsage(resp.Usage)
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openaiClient) ChatStream(ctx context.Context, messages []Message, opts Options, onToken func(string)) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(messages, opts))
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" && onToken != nil {
				onToken(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai stream failed: %w", err)
	}

	c.reportUsage(acc.Usage)
	if len(acc.Choices) == 0 {
		return "", nil
	}
	return acc.Choices[0].Message.Content, nil
}

func (c *openaiClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDef, opts Options) (*ToolResponse, error) {
	params := c.buildParams(messages, opts)
	for _, t := range tools {
		var schema map[string]any
		if len(t.InputSchema) > 0 {
			if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
				logging.Get(logging.CategoryAPI).Warn("tool %s has an unparsable schema: %v", t.Name, err)
			}
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  schema,
				},
			},
		})
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tool chat failed: %w", err)
	}
	c.reportUsage(resp.Usage)
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai tool chat returned no choices")
	}

	msg := resp.Choices[0].Message
	out := &ToolResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := jsonx.Unmarshal(tc.Function.Arguments, &args); err != nil {
				logging.Get(logging.CategoryAPI).Warn("unparsable tool args for %s: %v", tc.Function.Name, err)
			}
		}
		out.Calls = append(out.Calls, ToolCall{Name: tc.Function.Name, Args: args})
	}
	return out, nil
}

var _ Client = (*openaiClient)(nil)
