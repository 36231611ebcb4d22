package core

import (
	"context"
	"iter"
)

// Provider defines the interface every provider connector implements
type Provider interface {
	// Name returns the provider identity used for error extraction and metrics
	Name() string

	// ChatCompletion executes a retried chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, *ResponseMetadata, error)

	// StreamChatCompletion opens a decoded SSE stream (caller must close)
	StreamChatCompletion(ctx context.Context, req *ChatRequest) (ChatStream, error)

	// ListModels returns the list of available models
	ListModels(ctx context.Context) (*ModelsResponse, error)
}

// ChatStream is a single-pass, cancellable sequence of decoded frames
type ChatStream interface {
	// Next returns the next frame, or io.EOF once the stream has finished
	Next(ctx context.Context) (StreamFrame, error)
	// All ranges over the remaining frames; breaking out closes the stream
	All(ctx context.Context) iter.Seq2[StreamFrame, error]
	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}
