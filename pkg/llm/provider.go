package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user" or "model"
	Content string
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
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

// Chunk is one increment of a streamed completion. A non-nil Err is
// terminal: no further chunks follow it.
type Chunk struct {
	Text string
	Err  error
}

// Schema describes the expected shape of a structured response in the
// provider's native schema dialect.
type Schema map[string]any

// Provider defines the contract for any text-generation backend
type Provider interface {
	// Generate sends a single prompt to the model and returns the full response
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// GenerateJSON asks the model for a structured response matching schema
	// and unmarshals it into out
	GenerateJSON(ctx context.Context, prompt string, schema Schema, out any) error

	// Stream sends a chat history plus a system prompt and returns a lazy,
	// single-pass sequence of response chunks
	Stream(ctx context.Context, history []Message, systemPrompt string, options ...Option) (<-chan Chunk, error)
}
