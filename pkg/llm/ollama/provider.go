package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"ai-assistant-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

var _ llm.StreamingProvider = &OllamaProvider{}

// NewOllamaProvider has no client timeout; streams are bounded by ctx.
func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client:    &http.Client{},
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  ollamaToolParams `json:"parameters"`
}

type ollamaToolParams struct {
	Type       string                       `json:"type"`
	Properties map[string]map[string]string `json:"properties"`
	Required   []string                     `json:"required,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model      string        `json:"model"`
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason"`
	Error      string        `json:"error"`
}

func (o *OllamaProvider) buildRequest(history []llm.Message, tools []llm.ToolDefinition, stream bool, opts ...llm.Option) ollamaChatRequest {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7}, opts...)

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	messages := make([]ollamaMessage, 0, len(history)+1)
	if options.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: options.System})
	}
	for _, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		om := ollamaMessage{Role: role, Content: msg.Content, ToolName: msg.ToolName}
		for _, tc := range msg.ToolCalls {
			var call ollamaToolCall
			call.Function.Name = tc.Name
			call.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, call)
		}
		messages = append(messages, om)
	}

	req := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Options:  &ollamaOptions{Temperature: options.Temperature, NumPredict: options.MaxTokens},
	}
	for _, t := range tools {
		params := ollamaToolParams{Type: "object", Properties: map[string]map[string]string{}}
		for _, p := range t.Parameters {
			params.Properties[p.Name] = map[string]string{"type": "string", "description": p.Description}
			if p.Required {
				params.Required = append(params.Required, p.Name)
			}
		}
		req.Tools = append(req.Tools, ollamaTool{
			Type:     "function",
			Function: ollamaToolFunction{Name: t.Name, Description: t.Description, Parameters: params},
		})
	}
	return req
}

func (o *OllamaProvider) post(ctx context.Context, payload ollamaChatRequest) (*http.Response, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ollama request failed: %v", llm.ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, body)
	}
	return resp, nil
}

func statusError(code int, body []byte) error {
	msg := fmt.Sprintf("ollama error: status %d, body: %s", code, string(body))
	if code == http.StatusTooManyRequests || code >= 500 {
		return fmt.Errorf("%w: %s", llm.ErrTransient, msg)
	}
	return errors.New(msg)
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := o.post(ctx, o.buildRequest(history, nil, false, opts...))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var ollamaResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return ollamaResp.Message.Content, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return o.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// ChatStream reads Ollama's NDJSON stream, one chunk per line.
func (o *OllamaProvider) ChatStream(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, onDelta func(string), opts ...llm.Option) (*llm.StreamResult, error) {
	resp, err := o.post(ctx, o.buildRequest(history, tools, true, opts...))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := &llm.StreamResult{}
	var content strings.Builder
	done := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return nil, fmt.Errorf("%w: ollama stream error: %s", llm.ErrTransient, chunk.Error)
		}

		if chunk.Message.Content != "" {
			content.WriteString(chunk.Message.Content)
			if onDelta != nil {
				onDelta(chunk.Message.Content)
			}
		}
		for _, tc := range chunk.Message.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				ID:        "call_" + strconv.Itoa(len(result.ToolCalls)),
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if chunk.Done {
			result.FinishReason = chunk.DoneReason
			done = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream interrupted: %v", llm.ErrTransient, err)
		}
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if !done {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: stream ended before done", llm.ErrTransient)
	}

	result.Content = content.String()
	if len(result.ToolCalls) > 0 {
		result.FinishReason = "tool_calls"
	}
	return result, nil
}
