package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ai-assistant-be/pkg/llm"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client    *genai.Client
	ModelName string
}

var _ llm.StreamingProvider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	return &GeminiProvider{client: client, ModelName: modelName}, nil
}

func (g *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	model, config := g.config(nil, opts...)
	resp, err := g.client.Models.GenerateContent(ctx, model, toContents(history), config)
	if err != nil {
		return "", classify(ctx, err)
	}
	return resp.Text(), nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (g *GeminiProvider) ChatStream(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, onDelta func(string), opts ...llm.Option) (*llm.StreamResult, error) {
	model, config := g.config(tools, opts...)

	result := &llm.StreamResult{}
	var content strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, toContents(history), config) {
		if err != nil {
			return nil, classify(ctx, err)
		}
		if text := resp.Text(); text != "" {
			content.WriteString(text)
			if onDelta != nil {
				onDelta(text)
			}
		}
		for _, fc := range resp.FunctionCalls() {
			id := fc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", len(result.ToolCalls))
			}
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{ID: id, Name: fc.Name, Arguments: fc.Args})
		}
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			result.FinishReason = strings.ToLower(string(resp.Candidates[0].FinishReason))
		}
	}

	result.Content = content.String()
	if len(result.ToolCalls) > 0 {
		result.FinishReason = "tool_calls"
	}
	return result, nil
}

func (g *GeminiProvider) config(tools []llm.ToolDefinition, opts ...llm.Option) (string, *genai.GenerateContentConfig) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7}, opts...)
	model := g.ModelName
	if options.Model != "" {
		model = options.Model
	}

	temp := float32(options.Temperature)
	config := &genai.GenerateContentConfig{Temperature: &temp}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(options.MaxTokens)
	}
	if options.System != "" {
		config.SystemInstruction = genai.NewContentFromText(options.System, genai.RoleUser)
	}
	if len(tools) > 0 {
		config.Tools = toTools(tools)
	}
	return model, config
}

func toContents(history []llm.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "assistant", "model":
			parts := []*genai.Part{}
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, tc.Arguments))
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case "tool":
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{
					genai.NewPartFromFunctionResponse(msg.ToolName, map[string]any{"output": msg.Content}),
				},
			})
		case "system":
			// folded into SystemInstruction by the caller
			continue
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents
}

func toTools(defs []llm.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range d.Parameters {
			schema.Properties[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return fmt.Errorf("%w: gemini: %v", llm.ErrTransient, err)
		}
		return fmt.Errorf("gemini: %w", err)
	}
	// transport-level failures carry no API status
	return fmt.Errorf("%w: gemini: %v", llm.ErrTransient, err)
}
