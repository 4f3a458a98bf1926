package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"

	"researchnerd/internal/logging"
)

// geminiClient drives Google Gemini through the genai SDK.
type geminiClient struct {
	client  *genai.Client
	model   string
	onUsage UsageCallback
}

func newGeminiClient(model string, onUsage UsageCallback) (*geminiClient, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required for the google_genai provider")
	}

	ctx := context.Background()
	start := time.Now()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	logging.Get(logging.CategoryAPI).Debug("GenAI client created in %v for model %s", time.Since(start), model)

	return &geminiClient{client: client, model: model, onUsage: onUsage}, nil
}

func (c *geminiClient) Model() string { return c.model }

func (c *geminiClient) buildConfig(system string, opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts.HasTemperature {
		cfg.Temperature = genai.Ptr(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	return cfg
}

func toContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func (c *geminiClient) reportUsage(meta *genai.GenerateContentResponseUsageMetadata) {
	if meta == nil || c.onUsage == nil {
		return
	}
	c.onUsage(int(meta.PromptTokenCount), int(meta.CandidatesTokenCount), c.model)
}

func (c *geminiClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	system, rest := splitSystem(messages)
	start := time.Now()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, toContents(rest), c.buildConfig(system, opts))
	if err != nil {
		return "", fmt.Errorf("gemini chat failed: %w", err)
	}
	logging.Get(logging.CategoryAPI).Debug("gemini %s completed in %v", c.model, time.Since(start))

	c.reportUsage(resp.UsageMetadata)
	return resp.Text(), nil
}

func (c *geminiClient) ChatStream(ctx context.Context, messages []Message, opts Options, onToken func(string)) (string, error) {
	system, rest := splitSystem(messages)

	var full string
	var lastMeta *genai.GenerateContentResponseUsageMetadata
	for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.model, toContents(rest), c.buildConfig(system, opts)) {
		if err != nil {
			return full, fmt.Errorf("gemini stream failed: %w", err)
		}
		if chunk.UsageMetadata != nil {
			lastMeta = chunk.UsageMetadata
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		full += text
		if onToken != nil {
			onToken(text)
		}
	}

	c.reportUsage(lastMeta)
	return full, nil
}

func (c *geminiClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDef, opts Options) (*ToolResponse, error) {
	system, rest := splitSystem(messages)
	cfg := c.buildConfig(system, opts)

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.InputSchema) > 0 {
			var schema map[string]any
			if err := json.Unmarshal(t.InputSchema, &schema); err == nil {
				decl.ParametersJsonSchema = schema
			}
		}
		decls = append(decls, decl)
	}
	if len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, toContents(rest), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini tool chat failed: %w", err)
	}
	c.reportUsage(resp.UsageMetadata)

	out := &ToolResponse{Content: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		out.Calls = append(out.Calls, ToolCall{Name: fc.Name, Args: fc.Args})
	}
	return out, nil
}

var _ Client = (*geminiClient)(nil)
