package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
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

func Apply(opts ...Option) *Options {
	options := &Options{Temperature: 0.7}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Usage is the token accounting reported by a provider, if any.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
}

// Chunk is one streamed delta. Usage is set on the chunk that carries it,
// usually the last.
type Chunk struct {
	Content string
	Usage   *Usage
}

// Stream yields chunks until Recv returns io.EOF.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// ChatStream opens a token stream for the chat history
	ChatStream(ctx context.Context, history []Message, options ...Option) (Stream, error)
}

// Collect drains a stream into a single string.
func Collect(s Stream) (string, *Usage, error) {
	defer s.Close()

	var (
		sb    strings.Builder
		usage *Usage
	)
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), usage, nil
		}
		if err != nil {
			return sb.String(), usage, err
		}
		sb.WriteString(chunk.Content)
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
}
