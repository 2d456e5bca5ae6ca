package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	JSONFormat  bool   // Ask the backend for a strict JSON object
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

// WithJSONFormat requests structured output. Callers must still tolerate
// malformed JSON: not every backend enforces the format.
func WithJSONFormat() Option {
	return func(o *Options) {
		o.JSONFormat = true
	}
}

// ApplyOptions resolves opts on top of the given defaults.
func ApplyOptions(defaults Options, opts ...Option) *Options {
	options := defaults
	for _, opt := range opts {
		opt(&options)
	}
	return &options
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
