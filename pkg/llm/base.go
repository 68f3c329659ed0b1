// Package llm provides interfaces and utilities for chat completion providers.
//
// It defines the Provider interface that all completion implementations must
// satisfy, along with message types, tool schemas, and generation options.
package llm

import "context"

// Provider defines the interface for chat completion providers.
//
// All completion implementations (OpenAI and OpenAI-compatible endpoints)
// must implement this interface.
type Provider interface {
	// Complete generates a completion from a conversation history.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - messages: Conversation history (system, user, assistant, tool messages)
	//   - opts: Optional generation parameters (temperature, max tokens, tools, etc.)
	//
	// Returns the completion, which contains either text content, one or more
	// tool-call requests, or both.
	Complete(ctx context.Context, messages []Message, opts ...CompleteOption) (*Completion, error)

	// Close closes the provider and releases resources.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`

	// Name optionally names the tool that produced a tool-role message.
	Name string `json:"name,omitempty"`

	// ToolCallID links a tool-role message to the assistant tool call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls contains tool-call requests attached to an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a single function/tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned identifier of the call.
	ID string `json:"id"`

	// Name is the name of the tool to invoke.
	Name string `json:"name"`

	// Arguments is the JSON-encoded argument object.
	Arguments string `json:"arguments"`
}

// ToolSchema describes a callable tool to the model.
type ToolSchema struct {
	// Name is the tool name.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the tool arguments.
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Usage reports token accounting for a completion, when the provider supplies it.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the generated output.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens consumed.
	TotalTokens int `json:"total_tokens"`
}

// Completion is the result of a Complete call.
type Completion struct {
	// Content is the generated text (may be empty when tool calls are returned).
	Content string `json:"content"`

	// ToolCalls contains tool invocations requested by the model, if any.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Usage contains token usage, if reported by the provider.
	Usage *Usage `json:"usage,omitempty"`

	// Model is the model that produced the completion.
	Model string `json:"model,omitempty"`
}

// CompleteOptions contains options for completion generation.
type CompleteOptions struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0).
	TopP float64

	// Stop contains stop sequences that will end generation.
	Stop []string

	// Tools contains tool schemas made available to the model.
	Tools []ToolSchema
}

// CompleteOption is a function type for configuring completion options.
type CompleteOption func(*CompleteOptions)

// WithTemperature sets the temperature for completion generation.
func WithTemperature(temp float64) CompleteOption {
	return func(opts *CompleteOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the response.
func WithMaxTokens(max int) CompleteOption {
	return func(opts *CompleteOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
func WithTopP(topP float64) CompleteOption {
	return func(opts *CompleteOptions) {
		opts.TopP = topP
	}
}

// WithStop sets the stop sequences for completion generation.
func WithStop(stop ...string) CompleteOption {
	return func(opts *CompleteOptions) {
		opts.Stop = stop
	}
}

// WithTools makes the given tool schemas available to the model for this call.
//
// When the model decides to use a tool, the returned Completion carries the
// requested calls in ToolCalls instead of (or in addition to) text content.
func WithTools(tools []ToolSchema) CompleteOption {
	return func(opts *CompleteOptions) {
		opts.Tools = tools
	}
}

// ApplyCompleteOptions applies a slice of CompleteOption functions to create CompleteOptions.
//
// This is a helper used internally by provider implementations.
// Default values: Temperature=0.7, MaxTokens=1000, TopP=1.0.
func ApplyCompleteOptions(opts []CompleteOption) *CompleteOptions {
	options := &CompleteOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
