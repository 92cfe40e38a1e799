package llm

import (
	"context"
	"encoding/json"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Tool describes one function the model may call, with a JSON schema for its
// arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is the model's structured invocation of a declared tool. Arguments
// is the raw JSON payload; callers validate it themselves.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// Usage is the provider's token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the result of one chat call. Content may be empty when the
// model answered exclusively through a tool call, and ToolCall is nil when the
// model answered in free text.
type Completion struct {
	Content  string
	ToolCall *ToolCall
	Usage    Usage
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	Tools       []Tool
	// ForceTool names a tool the model is required to call. Providers that
	// cannot force a call treat this as a preference.
	ForceTool string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithTools(tools ...Tool) Option {
	return func(o *Options) {
		o.Tools = append(o.Tools, tools...)
	}
}

func WithForcedTool(name string) Option {
	return func(o *Options) {
		o.ForceTool = name
	}
}

// Provider defines the contract for any LLM backend
type Provider interface {
	// Chat sends a chat history to the model and returns the completion,
	// including any tool call and token usage.
	Chat(ctx context.Context, history []Message, options ...Option) (*Completion, error)
}
