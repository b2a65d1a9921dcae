package llm

import (
	"context"
	"errors"
)

// ErrTransient marks provider failures worth one retry (rate limits,
// upstream 5xx, dropped connections).
var ErrTransient = errors.New("llm: transient provider failure")

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role      string // "user", "assistant", "system", "tool"
	Content   string
	ToolCalls []ToolCall // assistant messages that requested tools
	ToolName  string     // tool result messages
	ToolID    string
}

// ToolParameter is a single string argument of a tool.
type ToolParameter struct {
	Name        string
	Description string
	Required    bool
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// StreamResult is the outcome of one streamed model step.
type StreamResult struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	System      string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithSystem(prompt string) Option {
	return func(o *Options) {
		o.System = prompt
	}
}

// ApplyOptions resolves opts over the given defaults.
func ApplyOptions(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// StreamingProvider streams a step token by token and may request tools.
// onDelta is called synchronously for every text fragment in order.
type StreamingProvider interface {
	LLMProvider
	ChatStream(ctx context.Context, history []Message, tools []ToolDefinition, onDelta func(string), options ...Option) (*StreamResult, error)
}
